package sim

import (
	"testing"
)

func TestKeyboardMapping(t *testing.T) {
	k := NewKeyboardSource(true)

	tests := []struct {
		keys []Key
		want Action
	}{
		{nil, Action{}},
		{[]Key{KeyA}, Action{Yaw: -1}},
		{[]Key{KeyD}, Action{Yaw: 1}},
		{[]Key{KeyA, KeyD}, Action{}},
		{[]Key{KeyW}, Action{Pitch: 1}},
		{[]Key{KeyS}, Action{Pitch: -1}},
		{[]Key{KeySpace, KeyD, KeyS}, Action{Yaw: 1, Pitch: -1, Fire: 1}},
	}
	for _, tt := range tests {
		k.SetPressed(tt.keys)
		if got := k.NextAction(nil); got != tt.want {
			t.Errorf("keys %v: got %+v, want %+v", tt.keys, got, tt.want)
		}
	}
}

func TestKeyboardDisabled(t *testing.T) {
	k := NewKeyboardSource(false)
	k.Press(KeySpace)
	k.Press(KeyD)
	if got := k.NextAction(nil); got != (Action{}) {
		t.Fatalf("disabled keyboard should return zeros, got %+v", got)
	}

	k.SetEnabled(true)
	if got := k.NextAction(nil); got.Fire != 1 || got.Yaw != 1 {
		t.Fatalf("enabled keyboard got %+v", got)
	}
	k.Release(KeySpace)
	if got := k.NextAction(nil); got.Fire != 0 {
		t.Fatal("released key should not fire")
	}
}

func TestActionFromSliceMissingComponents(t *testing.T) {
	if got := ActionFromSlice(nil); got != (Action{}) {
		t.Fatalf("got %+v", got)
	}
	if got := ActionFromSlice([]float64{0.5}); got != (Action{Yaw: 0.5}) {
		t.Fatalf("got %+v", got)
	}
	if got := ActionFromSlice([]float64{1, 2, 3, 4}); got != (Action{1, 2, 3}) {
		t.Fatalf("got %+v", got)
	}
}

func TestAimAssistTurnsTowardDrone(t *testing.T) {
	cfg := testConfig()
	a := newActiveTurret(cfg, nil)
	obs := a.BuildObservation([]DroneSnapshot{drone("d", 80, 0, 50)})

	act := AimAssistSource{}.NextAction(obs)
	if act.Yaw <= 0 {
		t.Fatalf("drone on +x should turn right, got %+v", act)
	}
	if act.Fire != 0 {
		t.Fatal("should not fire while facing away")
	}

	if got := (AimAssistSource{}).NextAction(a.BuildObservation(nil)); got != (Action{}) {
		t.Fatalf("no drones should give zero action, got %+v", got)
	}
}
