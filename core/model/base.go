// Package model provides the state and persistence plumbing shared by the
// estimators of the module.
//
// This package defines:
//
//   - StateManager: fitted-state and dimension tracking, safe for concurrent readers
//   - Model persistence: Save and load trained models using Go's encoding/gob
//   - ModelSpec envelope: a versioned JSON wrapper used when exporting models
//
// Estimators hold a *StateManager by composition:
//
//	type DecisionTreeClassifier struct {
//		State *model.StateManager
//		// model-specific fields
//	}
//
//	func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
//		// training logic
//		dt.State.SetFitted() // mark as trained
//		return nil
//	}
package model

import (
	"sync"
)

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained
	Fitted
)

// StateManager tracks whether an estimator has been fitted and with which
// dimensions. The zero value is an unfitted manager.
type StateManager struct {
	mu sync.RWMutex

	// State, NFeatures and NSamples are exported for gob encoding.
	State     EstimatorState
	NFeatures int
	NSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted with training data.
//
// Example:
//
//	if !dt.State.IsFitted() {
//	    return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
//	}
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == Fitted
}

// SetFitted marks the estimator as fitted (trained).
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = Fitted
}

// SetDimensions records the number of features and training samples.
// nSamples may be zero when the model was loaded rather than trained.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Dimensions returns the recorded number of features and samples.
func (s *StateManager) Dimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// Reset returns the estimator to its initial untrained state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = NotFitted
	s.NFeatures = 0
	s.NSamples = 0
}
