package automl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/automltrain/pkg/log"
)

func TestArtifactRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		classes bool
	}{
		{"glm regression", []string{AlgoGLM}, false},
		{"gbm regression", []string{AlgoGBM}, false},
		{"drf classification", []string{AlgoDRF}, true},
		{"xrt classification", []string{AlgoXRT}, true},
		{"glm classification", []string{AlgoGLM}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test := regressionFrames(t)
			y := "y"
			if tt.classes {
				train, test = classFrames(t, 40, func(i int) string {
					if i < 20 {
						return "low"
					}
					return "high"
				})
				y = "label"
			}

			p := testParams(tt.include...)
			p.MaxModels = 1
			aml := New(p, WithLogger(log.NewNopLogger()))
			require.NoError(t, aml.Train(context.Background(), nil, y, train, test))
			leader := aml.Leader()

			dir := filepath.Join(t.TempDir(), "model")
			path, err := SaveArtifact(dir, leader)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, leader.ID), path)

			loaded, err := LoadArtifact(path)
			require.NoError(t, err)
			assert.Equal(t, ArtifactVersion, loaded.Version)
			assert.Equal(t, leader.ID, loaded.Model.ID)
			assert.Equal(t, leader.Features, loaded.Model.Features)
			assert.Equal(t, leader.Domain, loaded.Model.Domain)
			assert.Equal(t, leader.Metrics, loaded.Model.Metrics)

			want, err := leader.Predict(test)
			require.NoError(t, err)
			got, err := loaded.Model.Predict(test)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(want, got, 1e-12))
		})
	}
}

func TestSaveArtifactErrors(t *testing.T) {
	_, err := SaveArtifact(t.TempDir(), nil)
	assert.Error(t, err)

	_, err = SaveArtifact(t.TempDir(), &Model{ID: "GLM_1_AutoML_x"})
	assert.Error(t, err)
}

func TestLoadArtifactErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadArtifact(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not gob"), 0o644))
	_, err = LoadArtifact(garbage)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "GBM_1_AutoML_my_project_v1.2", fileName("GBM_1_AutoML_my project/v1.2"))
	assert.Equal(t, "DRF_1_AutoML_abc-123", fileName("DRF_1_AutoML_abc-123"))
}
