package sim

import (
	"testing"
)

func newTestSpawner(t *testing.T, mutate func(*DroneSpawner)) *DroneSpawner {
	t.Helper()
	cfg := testConfig()
	s := NewDroneSpawner(cfg, NewPerlinNoise(cfg.Episode.Seed), nil)
	if mutate != nil {
		mutate(s)
	}
	s.ResetAll()
	return s
}

func TestResetAllSpawnsConfiguredCount(t *testing.T) {
	s := newTestSpawner(t, nil)
	if got := len(s.LiveDrones()); got != 5 {
		t.Fatalf("live drones = %d, want 5", got)
	}

	first := s.LiveDrones()[0].ID
	s.ResetAll()
	if got := len(s.LiveDrones()); got != 5 {
		t.Fatalf("after reset live drones = %d, want 5", got)
	}
	if s.LiveDrones()[0].ID == first {
		t.Fatal("reset should spawn fresh drones")
	}
}

func TestLiveDronesStableOrder(t *testing.T) {
	s := newTestSpawner(t, nil)
	before := s.LiveDrones()
	for i := 0; i < 10; i++ {
		s.Tick(0.02)
	}
	after := s.LiveDrones()
	for i := range before {
		if before[i].ID != after[i].ID {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestReportHitRespawnsInPlace(t *testing.T) {
	s := newTestSpawner(t, nil)
	target := s.LiveDrones()[2]

	if !s.ReportHit(target.ID) {
		t.Fatal("ReportHit on a live drone should succeed")
	}
	if s.Count() != 5 {
		t.Fatalf("respawn mode should keep the drone, count = %d", s.Count())
	}
	d, ok := s.Drone(target.ID)
	if !ok || d.Hits != 1 {
		t.Fatalf("drone hit counter not updated: %+v", d)
	}
	if s.LiveDrones()[2].ID != target.ID {
		t.Fatal("respawned drone should keep its slot")
	}
}

func TestReportHitRemovesWhenRespawnDisabled(t *testing.T) {
	s := newTestSpawner(t, func(s *DroneSpawner) { s.spawn.RespawnOnHit = false })
	target := s.LiveDrones()[0].ID

	if !s.ReportHit(target) {
		t.Fatal("ReportHit should succeed")
	}
	if s.Count() != 4 || s.Destroyed() != 1 {
		t.Fatalf("count=%d destroyed=%d", s.Count(), s.Destroyed())
	}
	if s.ReportHit(target) {
		t.Fatal("stale handle should be a no-op")
	}
	s.NotifyDestroyed(target)
	if s.Destroyed() != 1 {
		t.Fatal("duplicate NotifyDestroyed should be ignored")
	}
}

func TestReportHitUnknownID(t *testing.T) {
	s := newTestSpawner(t, nil)
	if s.ReportHit("missing") {
		t.Fatal("unknown id should report false")
	}
}

func TestParallelTickMatchesSerial(t *testing.T) {
	serial := newTestSpawner(t, nil)
	parallel := newTestSpawner(t, func(s *DroneSpawner) { s.parallel = true })

	for i := 0; i < 500; i++ {
		serial.Tick(0.02)
		parallel.Tick(0.02)
	}

	a, b := serial.LiveDrones(), parallel.LiveDrones()
	for i := range a {
		if a[i].Position != b[i].Position {
			t.Fatalf("drone %d diverged: %+v vs %+v", i, a[i].Position, b[i].Position)
		}
	}
}

func TestDegenerateBoundsSkipSpawn(t *testing.T) {
	s := newTestSpawner(t, func(s *DroneSpawner) {
		s.bounds.Y = Interval{5, 5}
	})
	if s.Count() != 0 {
		t.Fatalf("degenerate bounds should not spawn drones, got %d", s.Count())
	}
}
