// Package model provides the estimator interfaces, fitted-state tracking and
// gob persistence shared by every candidate algorithm.
package model

import (
	"sync"

	"github.com/YuminosukeSato/automltrain/pkg/errors"
)

// StateManager tracks whether an estimator has been fitted and the shape it
// was fitted on. Exported fields are kept so the state survives gob
// round-trips of saved model artifacts.
type StateManager struct {
	Fitted    bool
	NFeatures int
	NSamples  int

	mu sync.RWMutex
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted on data of the given shape.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// Features returns the number of features seen during fitting.
func (s *StateManager) Features() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures
}

// RequireFitted returns a NotFittedError naming modelName and method when
// the model has not been fitted, and a DimensionError when X has a different
// number of columns than the training data.
func (s *StateManager) RequireFitted(modelName, method string, nCols int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.Fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if nCols != s.NFeatures {
		return errors.NewDimensionError(modelName+"."+method, s.NFeatures, nCols, 1)
	}
	return nil
}
