package sim

import (
	"math"
	"testing"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

func newTestFlight(t *testing.T, seed uint64) (*FlightController, WorldBounds) {
	t.Helper()
	b := scenarioBounds()
	f := NewFlightController(NewPerlinNoise(int64(seed)), EulerIntegrator{}, testRNG(seed))
	if !f.Initialize(b.Box, b.SpawnMargins(), testConfig().Drone) || !f.Ready() {
		t.Fatal("Initialize failed")
	}
	return f, b
}

func TestTickStaysInBounds(t *testing.T) {
	params := testConfig().Drone
	for seed := uint64(0); seed < 20; seed++ {
		f, b := newTestFlight(t, seed)
		for i := 0; i < 5000; i++ {
			f.Tick(0.02)
			p := f.Position()
			if !b.Contains(p) {
				t.Fatalf("seed %d tick %d: position %+v outside bounds", seed, i, p)
			}
			if l := f.Lift(); l < params.Lift*0.5 || l > params.MaxLift {
				t.Fatalf("seed %d tick %d: lift %v out of range", seed, i, l)
			}
			if y := f.Yaw(); y < 0 || y >= 360 {
				t.Fatalf("seed %d tick %d: yaw %v not wrapped", seed, i, y)
			}
		}
	}
}

func TestTickLargeStepStaysFinite(t *testing.T) {
	f, b := newTestFlight(t, 7)
	for i := 0; i < 200; i++ {
		f.Tick(5)
		p := f.Position()
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) || !b.Contains(p) {
			t.Fatalf("tick %d: bad position %+v", i, p)
		}
	}
}

func TestRespawnTwiceStaysInSafeBox(t *testing.T) {
	f, b := newTestFlight(t, 3)
	safe, _ := b.SafeBox(b.SpawnMargins())
	for i := 0; i < 50; i++ {
		f.Tick(0.02)
	}

	f.Respawn()
	first := f.Position()
	f.Respawn()
	second := f.Position()

	if !safe.Contains(first) || !safe.Contains(second) {
		t.Fatalf("respawn left safe box: %+v %+v", first, second)
	}
	if first == second {
		t.Fatal("respawn should redraw the position")
	}
	if !f.Velocity().IsZero() || !f.AngularVelocity().IsZero() || f.verticalVel != 0 {
		t.Fatal("respawn should zero velocities")
	}
}

func TestInitializeDegenerateIsNoop(t *testing.T) {
	f := NewFlightController(nil, nil, testRNG(1))
	flat := Box{X: Interval{0, 100}, Y: Interval{5, 5}, Z: Interval{0, 100}}
	if f.Initialize(flat, models.Vector3{}, testConfig().Drone) || f.Ready() {
		t.Fatal("degenerate bounds should not initialize")
	}
	f.Tick(0.02)
	f.Respawn()
	if !f.Position().IsZero() {
		t.Fatalf("uninitialized controller moved: %+v", f.Position())
	}
}

func TestBoundaryEscapeTargetsInward(t *testing.T) {
	f, _ := newTestFlight(t, 11)
	spread := f.params.BoundarySpread

	f.position = models.Vec3(2, 10, 50)
	f.yawTimer = 100
	f.updateHeading(0.02)

	if d := math.Abs(DeltaAngle(90, f.targetYaw)); d > spread+1e-9 {
		t.Fatalf("target yaw %v not within %v of inward yaw 90", f.targetYaw, spread)
	}
	if f.yawTimer < 0.4 || f.yawTimer > 1.0 {
		t.Fatalf("boundary escape timer %v outside [0.4,1.0]", f.yawTimer)
	}
}

func TestWanderWaitsForTimer(t *testing.T) {
	f, _ := newTestFlight(t, 12)
	f.position = models.Vec3(50, 10, 50)
	f.targetYaw = 33
	f.yawTimer = 1

	f.updateHeading(0.02)
	if f.targetYaw != 33 {
		t.Fatalf("target changed before timer expired: %v", f.targetYaw)
	}

	f.yawTimer = 0.01
	f.updateHeading(0.02)
	ci := f.params.ChangeInterval
	if f.yawTimer < ci*0.7 || f.yawTimer > ci*1.3 {
		t.Fatalf("wander timer %v outside [%v,%v]", f.yawTimer, ci*0.7, ci*1.3)
	}
}

func TestVerticalSafetyNet(t *testing.T) {
	f, _ := newTestFlight(t, 5)
	mid := f.yInner.Mid()

	f.position.Y = f.yInner.Min + 0.1
	f.verticalVel = -3
	f.updateHeight(0.02)
	if f.verticalVel != 3 {
		t.Fatalf("vertical velocity should flip upward, got %v", f.verticalVel)
	}
	if f.targetHeight < mid {
		t.Fatalf("target %v should be above mid %v", f.targetHeight, mid)
	}
	if f.heightTimer < 0.5 || f.heightTimer > 1.2 {
		t.Fatalf("safety net timer %v outside [0.5,1.2]", f.heightTimer)
	}

	f.position.Y = f.yInner.Max - 0.1
	f.verticalVel = 2
	f.updateHeight(0.02)
	if f.verticalVel != -2 {
		t.Fatalf("vertical velocity should flip downward, got %v", f.verticalVel)
	}
	if f.targetHeight > mid {
		t.Fatalf("target %v should be below mid %v", f.targetHeight, mid)
	}
}

func TestFloatTargetStaysInInnerBand(t *testing.T) {
	f, _ := newTestFlight(t, 9)
	lo := f.yInner.Min + f.params.TargetInset
	hi := f.yInner.Max - f.params.TargetInset
	for i := 0; i < 1000; i++ {
		f.pickFloatTarget()
		if h := f.TargetHeight(); h < lo || h > hi {
			t.Fatalf("float target %v outside [%v,%v]", h, lo, hi)
		}
	}
}

func TestTurnRateLimited(t *testing.T) {
	f, _ := newTestFlight(t, 4)
	f.position = models.Vec3(50, 10, 50)
	f.yawTimer = 100
	f.targetYaw = WrapDegrees(f.yaw + 170)

	before := f.yaw
	f.Tick(0.02)
	// 噪声幅度有限，单步转角不超过 turnSpeed*dt
	if d := math.Abs(DeltaAngle(before, f.yaw)); d > f.params.TurnSpeed*0.02+1e-9 {
		t.Fatalf("yaw jumped %v degrees in one tick", d)
	}
}

func TestOutwardVerticalVelocityKilledAtBound(t *testing.T) {
	f, b := newTestFlight(t, 6)
	f.position = models.Vec3(50, b.Y.Max, 50)
	f.verticalVel = 5
	f.clampPosition()
	if f.verticalVel != 0 {
		t.Fatalf("outward vertical velocity should be zeroed, got %v", f.verticalVel)
	}

	f.position = models.Vec3(50, b.Y.Min-1, 50)
	f.verticalVel = -5
	f.clampPosition()
	if f.verticalVel != 0 || f.position.Y != b.Y.Min {
		t.Fatalf("clamp at floor failed: y=%v vv=%v", f.position.Y, f.verticalVel)
	}
}

func TestNoiseIsSmooth(t *testing.T) {
	n := NewPerlinNoise(1)
	prev := n.Sample(0, 0)
	for i := 1; i <= 1000; i++ {
		v := n.Sample(float64(i)*0.012, 0)
		if v < 0 || v > 1 {
			t.Fatalf("noise %v outside [0,1]", v)
		}
		if math.Abs(v-prev) > 0.1 {
			t.Fatalf("noise jumped from %v to %v", prev, v)
		}
		prev = v
	}
}
