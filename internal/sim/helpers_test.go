package sim

import (
	"math"
	"math/rand/v2"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// stubWorld 固定无人机集合，记录收到的调用
type stubWorld struct {
	drones    []DroneSnapshot
	resets    int
	hits      map[string]int
	destroyed []string
	ticks     int
}

func newStubWorld(drones ...DroneSnapshot) *stubWorld {
	return &stubWorld{drones: drones, hits: make(map[string]int)}
}

func (w *stubWorld) LiveDrones() []DroneSnapshot {
	out := make([]DroneSnapshot, len(w.drones))
	copy(out, w.drones)
	return out
}

func (w *stubWorld) ResetAll() { w.resets++ }

func (w *stubWorld) ReportHit(id string) bool {
	for _, d := range w.drones {
		if d.ID == id {
			w.hits[id]++
			return true
		}
	}
	return false
}

func (w *stubWorld) NotifyDestroyed(id string) {
	for i, d := range w.drones {
		if d.ID == id {
			w.drones = append(w.drones[:i], w.drones[i+1:]...)
			w.destroyed = append(w.destroyed, id)
			return
		}
	}
}

func (w *stubWorld) Tick(float64) { w.ticks++ }

func testConfig() *config.Config {
	return config.Default()
}

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func drone(id string, x, y, z float64) DroneSnapshot {
	return DroneSnapshot{ID: id, Position: models.Vec3(x, y, z)}
}
