package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

func scenarioBounds() WorldBounds {
	return WorldBounds{
		Box: Box{
			X: Interval{0, 100},
			Y: Interval{3, 20},
			Z: Interval{0, 100},
		},
		Margin: 15,
	}
}

func TestSafeBoxScenario(t *testing.T) {
	b := scenarioBounds()
	safe, ok := b.SafeBox(b.SpawnMargins())
	if !ok {
		t.Fatal("safe box should not be degenerate")
	}
	if safe.X != (Interval{15, 85}) || safe.Z != (Interval{15, 85}) {
		t.Fatalf("unexpected horizontal safe box: x=%v z=%v", safe.X, safe.Z)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestInitializeLandsInSafeBox(t *testing.T) {
	b := scenarioBounds()
	params := testConfig().Drone
	safe, _ := b.SafeBox(b.SpawnMargins())

	for i := 0; i < 1000; i++ {
		f := NewFlightController(nil, nil, testRNG(uint64(i)))
		if !f.Initialize(b.Box, b.SpawnMargins(), params) {
			t.Fatalf("init %d failed", i)
		}
		p := f.Position()
		if p.X < 15 || p.X > 85 || p.Z < 15 || p.Z > 85 {
			t.Fatalf("init %d landed outside [15,85]^2: %+v", i, p)
		}
		if !safe.Contains(p) {
			t.Fatalf("init %d outside safe box: %+v", i, p)
		}
		if y := f.Yaw(); y < 0 || y >= 360 {
			t.Fatalf("yaw out of range: %v", y)
		}
	}
}

func TestShrinkCollapsesToMidpoint(t *testing.T) {
	got, ok := Interval{0, 10}.Shrink(6)
	if ok {
		t.Fatal("expected degenerate shrink")
	}
	if got.Min != 5 || got.Max != 5 {
		t.Fatalf("expected midpoint, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		bounds WorldBounds
		ok     bool
	}{
		{"scenario", scenarioBounds(), true},
		{"margin too wide", WorldBounds{Box: Box{Interval{0, 20}, Interval{0, 40}, Interval{0, 100}}, Margin: 10}, false},
		{"zero width", WorldBounds{Box: Box{Interval{0, 100}, Interval{5, 5}, Interval{0, 100}}, Margin: 1}, false},
		{"inverted", WorldBounds{Box: Box{Interval{0, 100}, Interval{0, 10}, Interval{100, 0}}, Margin: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBounds) {
				t.Fatalf("expected ErrInvalidBounds, got %v", err)
			}
		})
	}
}

func TestInwardDirection(t *testing.T) {
	b := scenarioBounds().Box

	if _, near := b.InwardDirection(models.Vec3(50, 10, 50), 10); near {
		t.Fatal("center should not be near a wall")
	}

	dir, near := b.InwardDirection(models.Vec3(2, 10, 50), 10)
	if !near || !approx(dir.X, 1, 1e-12) || dir.Z != 0 {
		t.Fatalf("west wall: near=%v dir=%+v", near, dir)
	}

	dir, near = b.InwardDirection(models.Vec3(98, 10, 98), 10)
	want := -1 / math.Sqrt2
	if !near || !approx(dir.X, want, 1e-12) || !approx(dir.Z, want, 1e-12) {
		t.Fatalf("corner: near=%v dir=%+v", near, dir)
	}
}

func TestYawFromDirection(t *testing.T) {
	if got := YawFromDirection(models.Vector3{}, 123); got != 123 {
		t.Fatalf("zero direction should fall back, got %v", got)
	}
	if got := YawFromDirection(models.Vec3(0, 5, 0), 42); got != 42 {
		t.Fatalf("vertical direction should fall back, got %v", got)
	}
	if got := YawFromDirection(models.Vec3(1, 0, 0), 0); !approx(got, 90, 1e-9) {
		t.Fatalf("+x should be 90, got %v", got)
	}
	if got := YawFromDirection(models.Vec3(-1, 0, 0), 0); !approx(got, 270, 1e-9) {
		t.Fatalf("-x should be 270, got %v", got)
	}
}

func TestAngles(t *testing.T) {
	if got := NormAngle(270); !approx(got, -0.5, 1e-12) {
		t.Fatalf("NormAngle(270) = %v", got)
	}
	if got := NormAngle(-30); !approx(got, -30.0/180, 1e-12) {
		t.Fatalf("NormAngle(-30) = %v", got)
	}
	if got := NormAngle(720 + 90); !approx(got, 0.5, 1e-12) {
		t.Fatalf("NormAngle(810) = %v", got)
	}
	if got := DeltaAngle(350, 10); !approx(got, 20, 1e-12) {
		t.Fatalf("DeltaAngle(350,10) = %v", got)
	}
	if got := RotateTowards(350, 10, 5); !approx(got, 355, 1e-12) {
		t.Fatalf("RotateTowards should take the short way, got %v", got)
	}
	if got := RotateTowards(10, 12, 5); !approx(got, 12, 1e-12) {
		t.Fatalf("RotateTowards should stop at target, got %v", got)
	}
}
