package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

func TestStateManager_RequireFitted(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("GBM", "Predict", 2)
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))
	assert.Equal(t, "GBM", notFitted.ModelName)

	s.SetFitted(2, 10)
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("GBM", "Predict", 2))

	err = s.RequireFitted("GBM", "Predict", 3)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
	assert.Equal(t, 0, s.Features())
}

type persisted struct {
	Name  string
	State *StateManager
	Coef  []float64
}

func TestSaveAndLoadModel(t *testing.T) {
	state := NewStateManager()
	state.SetFitted(3, 100)
	in := persisted{Name: "GLM", State: state, Coef: []float64{1, 2, 3}}

	path := filepath.Join(t.TempDir(), "nested", "model.gob")
	require.NoError(t, SaveModel(&in, path))

	var out persisted
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, "GLM", out.Name)
	assert.Equal(t, []float64{1, 2, 3}, out.Coef)
	assert.True(t, out.State.IsFitted())
	assert.Equal(t, 3, out.State.Features())
}

func TestLoadModelFromReader_Invalid(t *testing.T) {
	var out persisted
	err := LoadModelFromReader(&out, bytes.NewBufferString("not gob"))
	assert.Error(t, err)
}
