// Package model holds the estimator interfaces and the fitted-state bookkeeping shared by
// estimators.
package model

import (
	"sync"

	"github.com/adaizjx/abess/pkg/errors"
)

// StateManager tracks whether an estimator is fitted and the shape it was fitted on.
// It is safe for concurrent use.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the estimator fitted on nSamples×nFeatures data.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset clears the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// RequireFitted returns a NotFittedError naming model and method when unfitted.
func (s *StateManager) RequireFitted(model, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(model, method)
	}
	return nil
}

// RequireFeatures checks that X has as many columns as the fitted data.
func (s *StateManager) RequireFeatures(op string, cols int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cols != s.nFeatures {
		return errors.NewDimensionError(op, s.nFeatures, cols, 1)
	}
	return nil
}

// WithState runs fn under the read lock.
func (s *StateManager) WithState(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// WithStateMut runs fn under the write lock.
func (s *StateManager) WithStateMut(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
