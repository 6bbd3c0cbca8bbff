package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/trainjob"
)

func writePrefix(t *testing.T, withTraining bool) string {
	t.Helper()
	l := trainjob.NewLayout(t.TempDir())
	data := "a,b,label\n1,2,0\n3,4,1\n5,6,0\n"
	cfg := `{"training": {"target": "label", "classification": "true"}, "h2o": {}, "aml": {"max_models": 1, "include_algos": ["GLM"]}}`

	for _, ch := range []string{trainjob.ChannelTraining, trainjob.ChannelTesting} {
		require.NoError(t, os.MkdirAll(l.ChannelDir(ch), 0o755))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(l.ConfigPath()), 0o755))
	require.NoError(t, os.WriteFile(l.ConfigPath(), []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(l.ChannelDir(trainjob.ChannelTesting), "test.csv"), []byte(data), 0o644))
	if withTraining {
		require.NoError(t, os.WriteFile(filepath.Join(l.ChannelDir(trainjob.ChannelTraining), "train.csv"), []byte(data), 0o644))
	}
	return l.Prefix
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, trainjob.ExitSuccess, run([]string{"-h"}, &out))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-nope"}},
		{"unknown command", []string{"serve"}},
		{"bad log level", []string{"-log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, exitUsage, run(tt.args, &out))
		})
	}
}

func TestRun_Train(t *testing.T) {
	prefix := writePrefix(t, true)
	var out bytes.Buffer

	code := run([]string{"train", "-prefix", prefix, "-log-level", "error"}, &out)
	assert.Equal(t, trainjob.ExitSuccess, code, out.String())
	assert.FileExists(t, filepath.Join(prefix, "model", trainjob.LeaderboardFile))
	assert.NoFileExists(t, filepath.Join(prefix, "output", "failure"))
}

func TestRun_PrefixFromEnvironment(t *testing.T) {
	prefix := writePrefix(t, false)
	t.Setenv("AUTOML_PREFIX", prefix)
	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer

	assert.Equal(t, trainjob.ExitFailure, run([]string{"train"}, &out))
	data, err := os.ReadFile(filepath.Join(prefix, "output", "failure"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "NoInputDataError")
	assert.Contains(t, out.String(), "Exception during training")
}

func TestEnvOr(t *testing.T) {
	t.Setenv("AUTOML_TEST_KEY", "")
	assert.Equal(t, "def", envOr("AUTOML_TEST_KEY", "def"))
	t.Setenv("AUTOML_TEST_KEY", "set")
	assert.Equal(t, "set", envOr("AUTOML_TEST_KEY", "def"))
}
