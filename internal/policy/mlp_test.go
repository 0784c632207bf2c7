package policy

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func testInput(n int) []float64 {
	in := make([]float64, n)
	for i := range in {
		in[i] = float64(i%7)/7 - 0.4
	}
	return in
}

func TestPredictBoundedAndDeterministic(t *testing.T) {
	m := NewMLP(87, 16)
	in := testInput(87)

	a, err := m.Predict(in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(a) != 3 {
		t.Fatalf("got %d outputs", len(a))
	}
	for i, v := range a {
		if v < -1 || v > 1 {
			t.Fatalf("output %d = %v outside tanh range", i, v)
		}
	}

	b, err := m.Predict(in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("output %d changed between calls: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestPredictPadsShortInput(t *testing.T) {
	m := NewMLP(10, 4)
	if _, err := m.Predict([]float64{1, 2}); err != nil {
		t.Fatalf("short input: %v", err)
	}
	if _, err := m.Predict(testInput(20)); err != nil {
		t.Fatalf("long input: %v", err)
	}
}

func TestNextAction(t *testing.T) {
	m := NewMLP(87, 8)
	obs := make([]float32, 87)
	act := m.NextAction(obs)
	if act.Yaw < -1 || act.Yaw > 1 || act.Pitch < -1 || act.Pitch > 1 || act.Fire < -1 || act.Fire > 1 {
		t.Fatalf("action out of range: %+v", act)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := NewMLP(12, 6)
	path := filepath.Join(t.TempDir(), "policy.gob")
	if err := src.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	dst, err := LoadMLP(path, 12, 6)
	if err != nil {
		t.Fatalf("LoadMLP: %v", err)
	}

	in := testInput(12)
	want, _ := src.Predict(in)
	got, _ := dst.Predict(in)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("output %d differs after reload: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsWrongShape(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMLP(12, 6).Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err := NewMLP(12, 8).Load(&buf)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
