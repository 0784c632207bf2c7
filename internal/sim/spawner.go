// spawner.go

package sim

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// DroneSnapshot 一帧内无人机的只读视图
type DroneSnapshot struct {
	ID       string
	Position models.Vector3
	Velocity models.Vector3
}

// World 无人机集合的拥有者，炮塔只读取快照并通过 ReportHit 报告命中
type World interface {
	LiveDrones() []DroneSnapshot
	ResetAll()
	ReportHit(id string) bool
	NotifyDestroyed(id string)
	Tick(dt float64)
}

// Drone 生成器管理的一架无人机
type Drone struct {
	ID        string
	Flight    *FlightController
	Hits      int
	CreatedAt time.Time
}

// DroneSpawner 默认的 World 实现，按生成顺序保存无人机
type DroneSpawner struct {
	bounds     WorldBounds
	params     config.DroneConfig
	spawn      config.SpawnerConfig
	noise      CoherentNoise
	integrator Integrator
	seed       uint64
	parallel   bool

	drones    []*Drone
	index     map[string]*Drone
	serial    uint64
	destroyed int
	mutex     sync.RWMutex
}

// NewDroneSpawner 创建生成器，边界不可用时记录警告，退化的轴在生成时取中点
func NewDroneSpawner(cfg *config.Config, noise CoherentNoise, integrator Integrator) *DroneSpawner {
	bounds := WorldBoundsFromConfig(cfg.World)
	if err := bounds.Validate(); err != nil {
		log.Warnf("世界边界配置异常: %v", err)
	}
	if integrator == nil {
		integrator = EulerIntegrator{}
	}

	return &DroneSpawner{
		bounds:     bounds,
		params:     cfg.Drone,
		spawn:      cfg.Spawner,
		noise:      noise,
		integrator: integrator,
		seed:       uint64(cfg.Episode.Seed),
		parallel:   cfg.Episode.ParallelDrones,
		index:      make(map[string]*Drone),
	}
}

// WorldBoundsFromConfig 由配置构造世界边界
func WorldBoundsFromConfig(w config.WorldConfig) WorldBounds {
	return WorldBounds{
		Box: Box{
			X: Interval{w.X.Min, w.X.Max},
			Y: Interval{w.Y.Min, w.Y.Max},
			Z: Interval{w.Z.Min, w.Z.Max},
		},
		Margin: w.SpawnMargin,
	}
}

// Bounds 世界边界
func (s *DroneSpawner) Bounds() WorldBounds {
	return s.bounds
}

// ResetAll 清空并重新生成全部无人机
func (s *DroneSpawner) ResetAll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.drones = s.drones[:0]
	s.index = make(map[string]*Drone)
	s.destroyed = 0

	for i := 0; i < s.spawn.DroneCount; i++ {
		s.spawnLocked()
	}
}

// Spawn 追加生成一架无人机
func (s *DroneSpawner) Spawn() (*Drone, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.spawnLocked()
}

func (s *DroneSpawner) spawnLocked() (*Drone, bool) {
	s.serial++
	rng := rand.New(rand.NewPCG(s.seed, s.serial))
	flight := NewFlightController(s.noise, s.integrator, rng)

	if !flight.Initialize(s.bounds.Box, s.bounds.SpawnMargins(), s.params) {
		log.Warnf("世界边界退化，跳过无人机生成")
		return nil, false
	}

	d := &Drone{
		ID:        uuid.NewString(),
		Flight:    flight,
		CreatedAt: time.Now(),
	}
	s.drones = append(s.drones, d)
	s.index[d.ID] = d
	return d, true
}

// LiveDrones 按生成顺序返回快照
func (s *DroneSpawner) LiveDrones() []DroneSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snaps := make([]DroneSnapshot, 0, len(s.drones))
	for _, d := range s.drones {
		snaps = append(snaps, DroneSnapshot{
			ID:       d.ID,
			Position: d.Flight.Position(),
			Velocity: d.Flight.Velocity(),
		})
	}
	return snaps
}

// Drone 按ID查找
func (s *DroneSpawner) Drone(id string) (*Drone, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	d, ok := s.index[id]
	return d, ok
}

// ReportHit 处理命中：原地重生或移除，无人机已不存在时返回 false
func (s *DroneSpawner) ReportHit(id string) bool {
	s.mutex.Lock()
	d, ok := s.index[id]
	if !ok {
		s.mutex.Unlock()
		return false
	}
	d.Hits++
	if s.spawn.RespawnOnHit {
		d.Flight.Respawn()
		s.mutex.Unlock()
		return true
	}
	s.mutex.Unlock()

	s.NotifyDestroyed(id)
	return true
}

// NotifyDestroyed 移除无人机，重复通知无效
func (s *DroneSpawner) NotifyDestroyed(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	for i, d := range s.drones {
		if d.ID == id {
			s.drones = append(s.drones[:i], s.drones[i+1:]...)
			break
		}
	}
	s.destroyed++
}

// Destroyed 本回合被移除的数量
func (s *DroneSpawner) Destroyed() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.destroyed
}

// Count 存活数量
func (s *DroneSpawner) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.drones)
}

// Tick 推进全部无人机，各无人机状态独立，可并行
func (s *DroneSpawner) Tick(dt float64) {
	s.mutex.RLock()
	drones := make([]*Drone, len(s.drones))
	copy(drones, s.drones)
	s.mutex.RUnlock()

	if !s.parallel || len(drones) < 2 {
		for _, d := range drones {
			d.Flight.Tick(dt)
		}
		return
	}

	var wg conc.WaitGroup
	for _, d := range drones {
		wg.Go(func() {
			d.Flight.Tick(dt)
		})
	}
	wg.Wait()
}

// Entities 无人机状态快照
func (s *DroneSpawner) Entities() []models.DroneEntity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]models.DroneEntity, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, models.DroneEntity{
			BaseEntity: models.BaseEntity{
				ID:        d.ID,
				Type:      models.EntityDrone,
				Position:  d.Flight.Position(),
				Yaw:       d.Flight.Yaw(),
				Velocity:  d.Flight.Velocity(),
				CreatedAt: d.CreatedAt,
			},
			AngularVelocity: d.Flight.AngularVelocity(),
			Hits:            d.Hits,
		})
	}
	return out
}
