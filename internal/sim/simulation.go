// simulation.go

package sim

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// StepResult 一步推进的结果
type StepResult struct {
	EpisodeID     string    `json:"episode_id"`
	Step          int       `json:"step"`
	Observation   []float32 `json:"observation"`
	Reward        float64   `json:"reward"`
	Done          bool      `json:"done"`
	Truncated     bool      `json:"truncated"`
	EpisodeReturn float64   `json:"episode_return"`
	Fired         bool      `json:"fired"`
	Hits          int       `json:"hits"` // 本步确认命中数
}

// EpisodeListener 回合结束回调
type EpisodeListener func(result models.EpisodeResult)

// Option Simulation 选项
type Option func(*Simulation)

// WithWorld 替换默认的无人机生成器
func WithWorld(w World) Option {
	return func(s *Simulation) { s.world = w }
}

// WithActionSource 设置 Step 使用的动作来源
func WithActionSource(src ActionSource) Option {
	return func(s *Simulation) { s.source = src }
}

// WithIntegrator 替换积分器
func WithIntegrator(i Integrator) Option {
	return func(s *Simulation) { s.integrator = i }
}

// WithCollisionSource 替换碰撞检测
func WithCollisionSource(c CollisionSource) Option {
	return func(s *Simulation) { s.collisions = c }
}

// WithNoise 替换噪声函数
func WithNoise(n CoherentNoise) Option {
	return func(s *Simulation) { s.noise = n }
}

// WithoutProjectiles 不生成子弹，开火只计入惩罚
func WithoutProjectiles() Option {
	return func(s *Simulation) { s.noProjectiles = true }
}

// WithEpisodeListener 注册回合结束回调
func WithEpisodeListener(l EpisodeListener) Option {
	return func(s *Simulation) { s.listeners = append(s.listeners, l) }
}

// WithArenaID 记录到回合结果中的场地ID
func WithArenaID(id string) Option {
	return func(s *Simulation) { s.arenaID = id }
}

// Simulation 固定步长的主循环，持有全部无人机与炮塔状态
// 非并发安全，由调用方串行调用
type Simulation struct {
	cfg           *config.Config
	world         World
	turret        *TurretAgent
	model         *ProjectileModel
	projectiles   []*Projectile
	integrator    Integrator
	collisions    CollisionSource
	noise         CoherentNoise
	source        ActionSource
	noProjectiles bool
	listeners     []EpisodeListener
	arenaID       string

	episodeID string
	step      int
	time      float64
	startedAt time.Time
	lastObs   []float32
}

// New 创建模拟并开始第一个回合
func New(cfg *config.Config, opts ...Option) *Simulation {
	s := &Simulation{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.integrator == nil {
		s.integrator = EulerIntegrator{}
	}
	if s.noise == nil {
		s.noise = NewPerlinNoise(cfg.Episode.Seed)
	}
	if s.collisions == nil {
		s.collisions = SweepCollider{DroneRadius: cfg.Drone.Radius}
	}
	if s.world == nil {
		s.world = NewDroneSpawner(cfg, s.noise, s.integrator)
	}
	if !s.noProjectiles {
		s.model = NewProjectileModel(cfg.Projectile)
	}
	s.turret = NewTurretAgent(cfg, s.world, s.model)

	s.Reset()
	return s
}

// Reset 开始新回合并返回初始观测
func (s *Simulation) Reset() []float32 {
	s.turret.BeginEpisode()
	s.projectiles = s.projectiles[:0]
	s.episodeID = uuid.NewString()
	s.step = 0
	s.time = 0
	s.startedAt = time.Now()
	s.lastObs = s.turret.BuildObservation(s.world.LiveDrones())

	log.Debugf("回合开始: %s", s.episodeID)
	return s.lastObs
}

// Step 从 ActionSource 取动作并推进一步，未设置来源时动作为零
func (s *Simulation) Step(dt float64) StepResult {
	var action Action
	if s.source != nil {
		action = s.source.NextAction(s.lastObs)
	}
	return s.Advance(action, dt)
}

// Advance 应用动作并推进一步
// 回合因步数上限或全部击毁结束时，返回的是终止观测，随后立即开始新回合
func (s *Simulation) Advance(action Action, dt float64) StepResult {
	if !(dt > 0) {
		dt = s.cfg.Episode.FixedDelta
	}

	var result StepResult
	result.EpisodeID = s.episodeID

	if p := s.turret.ApplyAction(action, s.time, dt); p != nil {
		s.projectiles = append(s.projectiles, p)
		result.Fired = true
	}

	s.world.Tick(dt)
	result.Hits = s.updateProjectiles(dt)

	s.step++
	s.time += dt

	drones := s.world.LiveDrones()
	truncated := s.cfg.Episode.MaxSteps > 0 && s.step >= s.cfg.Episode.MaxSteps
	cleared := s.cfg.Episode.EndWhenAllDestroyed && len(drones) == 0

	s.lastObs = s.turret.BuildObservation(drones)
	result.Step = s.step
	result.Observation = s.lastObs
	result.Reward = s.turret.ConsumeReward()
	result.EpisodeReturn = s.turret.EpisodeReturn()
	result.Done = truncated || cleared
	result.Truncated = truncated && !cleared

	if result.Done {
		s.finishEpisode(result.Truncated)
		s.Reset()
	}
	return result
}

// updateProjectiles 推进子弹并处理碰撞，返回本步确认命中数
func (s *Simulation) updateProjectiles(dt float64) int {
	if len(s.projectiles) == 0 {
		return 0
	}

	byID := make(map[string]*Projectile, len(s.projectiles))
	for _, p := range s.projectiles {
		if p.Tick(s.integrator, dt) {
			byID[p.ID] = p
		}
	}

	hits := 0
	for _, ev := range s.collisions.Detect(s.projectiles, s.world.LiveDrones()) {
		p, ok := byID[ev.SelfID]
		if !ok || !p.Accepts(ev) {
			continue
		}
		// 无人机已被移除时事件作废，子弹继续飞行
		if !s.world.ReportHit(ev.OtherID) {
			continue
		}
		p.OnImpact(ev)
		s.turret.OnHitConfirmed()
		hits++
	}

	alive := s.projectiles[:0]
	for _, p := range s.projectiles {
		if p.Alive() {
			alive = append(alive, p)
		}
	}
	for i := len(alive); i < len(s.projectiles); i++ {
		s.projectiles[i] = nil
	}
	s.projectiles = alive
	return hits
}

func (s *Simulation) finishEpisode(truncated bool) {
	res := models.EpisodeResult{
		EpisodeID: s.episodeID,
		ArenaID:   s.arenaID,
		Steps:     s.step,
		Return:    s.turret.EpisodeReturn(),
		Shots:     s.turret.Shots(),
		Hits:      s.turret.Hits(),
		Truncated: truncated,
		StartTime: s.startedAt,
		EndTime:   time.Now(),
	}
	log.Debugf("回合结束: %s 步数=%d 累计奖励=%.4f 命中=%d", res.EpisodeID, res.Steps, res.Return, res.Hits)

	for _, l := range s.listeners {
		l(res)
	}
}

// Observe 重新构造当前观测，计入存在惩罚
func (s *Simulation) Observe() []float32 {
	s.lastObs = s.turret.BuildObservation(s.world.LiveDrones())
	return s.lastObs
}

// LastObservation 最近一次构造的观测
func (s *Simulation) LastObservation() []float32 {
	return s.lastObs
}

// SetActionSource 替换动作来源
func (s *Simulation) SetActionSource(src ActionSource) {
	s.source = src
}

// Turret 炮塔
func (s *Simulation) Turret() *TurretAgent { return s.turret }

// World 无人机集合
func (s *Simulation) World() World { return s.world }

// Projectiles 当前存活子弹
func (s *Simulation) Projectiles() []*Projectile { return s.projectiles }

// EpisodeID 当前回合ID
func (s *Simulation) EpisodeID() string { return s.episodeID }

// StepCount 当前回合已推进的步数
func (s *Simulation) StepCount() int { return s.step }

// Time 当前回合时间(秒)
func (s *Simulation) Time() float64 { return s.time }

// Snapshot 当前世界状态
func (s *Simulation) Snapshot() models.WorldSnapshot {
	snap := models.WorldSnapshot{
		Step:        s.step,
		Time:        s.time,
		Turret:      s.turret.Entity(),
		Projectiles: make([]models.ProjectileEntity, 0, len(s.projectiles)),
	}
	if sp, ok := s.world.(*DroneSpawner); ok {
		snap.Drones = sp.Entities()
	} else {
		for _, d := range s.world.LiveDrones() {
			snap.Drones = append(snap.Drones, models.DroneEntity{BaseEntity: models.BaseEntity{
				ID:       d.ID,
				Type:     models.EntityDrone,
				Position: d.Position,
				Velocity: d.Velocity,
			}})
		}
	}
	for _, p := range s.projectiles {
		snap.Projectiles = append(snap.Projectiles, p.Entity())
	}
	return snap
}
