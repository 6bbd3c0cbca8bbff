package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
	"github.com/YuminosukeSato/automltrain/pkg/log"
	"github.com/YuminosukeSato/automltrain/pkg/params"
)

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(params.Group{
		"nthreads":     "2",
		"max_mem_size": "1G",
		"min_mem_size": "512MB",
		"port":         float64(55555),
		"seed":         "7",
		"custom":       "x",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, opts.NThreads)
	assert.Equal(t, uint64(1_000_000_000), opts.MaxMemBytes)
	assert.Equal(t, uint64(512_000_000), opts.MinMemBytes)
	assert.Equal(t, 55555, opts.Port)
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, "localhost", opts.IP)
	assert.Equal(t, map[string]any{"custom": "x"}, opts.Extra)

	defaults, err := DecodeOptions(params.Group{})
	require.NoError(t, err)
	assert.Equal(t, -1, defaults.NThreads)
	assert.Equal(t, defaultPort, defaults.Port)
	assert.Zero(t, defaults.MaxMemBytes)

	_, err = DecodeOptions(params.Group{"max_mem_size": "lots"})
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)

	c, err := Start(context.Background(), Options{NThreads: 3, Port: defaultPort}, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, c.NThreads())
	assert.NotEmpty(t, c.Name())
	assert.True(t, logger.ContainsMessage("Engine started"))

	named, err := Start(context.Background(), Options{NThreads: -1, Name: "local"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "local", named.Name())
	assert.Greater(t, named.NThreads(), 0)
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero threads", Options{NThreads: 0}},
		{"bad port", Options{NThreads: -1, Port: 70000}},
		{"min above max", Options{NThreads: -1, MaxMemBytes: 10, MinMemBytes: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Start(context.Background(), tt.opts, nil)
			var se *errors.EngineStartError
			assert.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, errors.KindEngineStart, errors.Kind(err))
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Start(ctx, Options{NThreads: -1}, nil)
	assert.Equal(t, errors.KindEngineStart, errors.Kind(err))
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,label\n1,2,0\n3,4,1\n"), 0o644))

	c, err := Start(context.Background(), Options{NThreads: 1}, nil)
	require.NoError(t, err)

	f, err := c.ImportFiles(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NRows())

	got, ok := c.Frame(f.Key)
	assert.True(t, ok)
	assert.Same(t, f, got)
	assert.Equal(t, f.SizeBytes(), c.MemoryUsed())

	_, err = c.ImportFiles(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Equal(t, errors.KindDataImport, errors.Kind(err))
}

func TestImportFilesMemoryCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n3,4\n5,6\n"), 0o644))

	c, err := Start(context.Background(), Options{NThreads: 1, MaxMemBytes: 8}, nil)
	require.NoError(t, err)

	_, err = c.ImportFiles(context.Background(), path)
	var de *errors.DataImportError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, path, de.Path)
}
