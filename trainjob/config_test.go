package trainjob

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/frame"
	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/params"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hyperparameters.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLayout(t *testing.T) {
	l := NewLayout("")
	assert.Equal(t, "/opt/ml/input/config/hyperparameters.json", l.ConfigPath())
	assert.Equal(t, "/opt/ml/input/data/training", l.ChannelDir(ChannelTraining))
	assert.Equal(t, "/opt/ml/input/data/testing", l.ChannelDir(ChannelTesting))
	assert.Equal(t, "/opt/ml/model", l.ModelDir())
	assert.Equal(t, "/opt/ml/output/failure", l.FailurePath())

	assert.Equal(t, "/tmp/x/model", NewLayout("/tmp/x").ModelDir())
}

func TestLoadConfiguration(t *testing.T) {
	path := writeConfig(t, `{
		"training": {"target": "label", "classification": "true"},
		"h2o": {"nthreads": "2"},
		"aml": "{\"max_models\": 3}"
	}`)

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, "label", cfg.Training["target"])
	assert.Equal(t, "2", cfg.Engine["nthreads"])
	assert.Equal(t, float64(3), cfg.Search["max_models"])
}

func TestLoadConfiguration_Aliases(t *testing.T) {
	path := writeConfig(t, `{"training": {}, "engine": {"port": 1}, "search": {"seed": 4}}`)

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, params.Group{"port": float64(1)}, cfg.Engine)
	assert.Equal(t, params.Group{"seed": float64(4)}, cfg.Search)
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{"malformed", `{"training": `, ""},
		{"not an object", `[1, 2]`, ""},
		{"missing training", `{"h2o": {}, "aml": {}}`, "training"},
		{"missing engine", `{"training": {}, "aml": {}}`, "h2o|engine"},
		{"missing search", `{"training": {}, "h2o": {}}`, "aml|search"},
		{"group not an object", `{"training": 5, "h2o": {}, "aml": {}}`, "training"},
		{"group string not JSON", `{"training": {}, "h2o": "nthreads=2", "aml": {}}`, "h2o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, errors.KindConfiguration, errors.Kind(err))
			if tt.wantKey != "" {
				var ce *errors.ConfigurationError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.wantKey, ce.Key)
			}
		})
	}

	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, errors.KindConfiguration, errors.Kind(err), "a missing file is a hard error")
}

func TestTrainingParams(t *testing.T) {
	tests := []struct {
		name     string
		training params.Group
		want     TrainingParams
	}{
		{"defaults", params.Group{}, TrainingParams{}},
		{
			"string flags",
			params.Group{"target": "y", "classification": "true", "concat_files": "true", "plot_leaderboard": "True"},
			TrainingParams{Target: "y", Classification: true, ConcatFiles: true, PlotLeaderboard: true},
		},
		{"json bool", params.Group{"classification": true}, TrainingParams{Classification: true}},
		{"literal only", params.Group{"classification": "True"}, TrainingParams{}},
		{"other value", params.Group{"classification": "yes"}, TrainingParams{}},
		{
			"ignored columns",
			params.Group{"ignored_columns": "id, ts"},
			TrainingParams{IgnoredColumns: []string{"id", "ts"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Training: tt.training}
			got, err := cfg.TrainingParams()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TrainingParams mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := (&Config{Training: params.Group{"ignored_columns": 3.0}}).TrainingParams()
	assert.Equal(t, errors.KindConfiguration, errors.Kind(err))
}

func TestResolveTarget(t *testing.T) {
	withLabel, err := frame.ReadCSV(strings.NewReader("a,label,response\n1,0,1\n"))
	require.NoError(t, err)
	withResponse, err := frame.ReadCSV(strings.NewReader("a,response\n1,0\n"))
	require.NoError(t, err)
	neither, err := frame.ReadCSV(strings.NewReader("a,b\n1,0\n"))
	require.NoError(t, err)

	got, err := TrainingParams{}.ResolveTarget(withLabel)
	require.NoError(t, err)
	assert.Equal(t, "label", got)

	got, err = TrainingParams{}.ResolveTarget(withResponse)
	require.NoError(t, err)
	assert.Equal(t, "response", got)

	got, err = TrainingParams{Target: "a"}.ResolveTarget(neither)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	_, err = TrainingParams{}.ResolveTarget(neither)
	assert.Equal(t, errors.KindConfiguration, errors.Kind(err))

	_, err = TrainingParams{Target: "label"}.ResolveTarget(neither)
	assert.Equal(t, errors.KindConfiguration, errors.Kind(err))
}

func TestResolveFeatures(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ResolveFeatures([]string{"a", "b", "label"}, "label", nil))
	assert.Equal(t, []string{"b"}, ResolveFeatures([]string{"id", "label", "b"}, "label", []string{"id", "nope"}))
	assert.Empty(t, ResolveFeatures([]string{"label"}, "label", nil))
}
