package model_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/madlib/archived-madlib-sub001/core/model"
)

// stump is a one-split model used to exercise gob persistence.
type stump struct {
	State     *model.StateManager
	Threshold float64
	Left      float64
	Right     float64
}

func newStump() *stump { return &stump{State: model.NewStateManager()} }

func (s *stump) fit(x, y []float64) {
	var ls, ln, rs, rn float64
	s.Threshold = x[len(x)/2]
	for i, v := range x {
		if v <= s.Threshold {
			ls, ln = ls+y[i], ln+1
		} else {
			rs, rn = rs+y[i], rn+1
		}
	}
	s.Left, s.Right = ls/ln, rs/rn
	s.State.SetDimensions(1, len(x))
	s.State.SetFitted()
}

func (s *stump) predict(x float64) float64 {
	if x <= s.Threshold {
		return s.Left
	}
	return s.Right
}

func TestSaveLoadModel(t *testing.T) {
	orig := newStump()
	orig.fit([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})

	tmpFile := filepath.Join(t.TempDir(), "test_model.gob")
	if err := model.SaveModel(orig, tmpFile); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	loaded := newStump()
	if err := model.LoadModel(loaded, tmpFile); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}

	for _, x := range []float64{0, 2.5, 5} {
		if orig.predict(x) != loaded.predict(x) {
			t.Errorf("Predictions do not match at %v: original=%v, loaded=%v", x, orig.predict(x), loaded.predict(x))
		}
	}
	if !loaded.State.IsFitted() {
		t.Error("Loaded model should be fitted")
	}
	if nFeatures, nSamples := loaded.State.Dimensions(); nFeatures != 1 || nSamples != 4 {
		t.Errorf("Dimensions not preserved: got (%d, %d)", nFeatures, nSamples)
	}
}

func TestSaveLoadModelToWriter(t *testing.T) {
	orig := newStump()
	orig.fit([]float64{5, 1, 3, 7, 9}, []float64{1, 0, 0, 1, 1})

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(orig, &buf); err != nil {
		t.Fatalf("Failed to save model to writer: %v", err)
	}

	loaded := newStump()
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatalf("Failed to load model from reader: %v", err)
	}
	if loaded.Threshold != orig.Threshold || loaded.Left != orig.Left || loaded.Right != orig.Right {
		t.Errorf("Model not preserved: original=%+v, loaded=%+v", orig, loaded)
	}
}

func TestLoadModelFileNotFound(t *testing.T) {
	err := model.LoadModel(newStump(), "nonexistent_file.gob")
	if err == nil {
		t.Error("Expected error for nonexistent file, got nil")
	}
	if err != nil && !bytes.Contains([]byte(err.Error()), []byte("failed to open file")) {
		t.Errorf("Expected error to contain 'failed to open file', got: %v", err)
	}
}

func TestSaveModelInvalidPath(t *testing.T) {
	err := model.SaveModel(newStump(), "/invalid/path/model.gob")
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
	if err != nil && !bytes.Contains([]byte(err.Error()), []byte("failed to create file")) {
		t.Errorf("Expected error to contain 'failed to create file', got: %v", err)
	}
}

func TestLoadModelCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob")
	if err := os.WriteFile(path, []byte("not gob"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := model.LoadModel(newStump(), path); err == nil {
		t.Error("Expected error for corrupt file, got nil")
	}
}
