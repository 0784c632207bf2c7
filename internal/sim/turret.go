// turret.go

package sim

import (
	"math"

	"github.com/charmbracelet/log"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// AgentState 炮塔智能体状态
type AgentState int

const (
	// AwaitingEpisode 等待回合开始
	AwaitingEpisode AgentState = iota
	// Active 回合进行中
	Active
)

func (s AgentState) String() string {
	if s == Active {
		return "active"
	}
	return "awaiting_episode"
}

// 缺少枪口时在父节点前方生成默认枪口
var defaultMuzzleOffset = models.Vector3{Z: 2}

// Action 连续动作，缺失分量为 0
type Action struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Fire  float64 `json:"fire"`
}

// ActionFromSlice 由向量构造动作
func ActionFromSlice(v []float64) Action {
	var a Action
	if len(v) > 0 {
		a.Yaw = v[0]
	}
	if len(v) > 1 {
		a.Pitch = v[1]
	}
	if len(v) > 2 {
		a.Fire = v[2]
	}
	return a
}

// Slice 转为长度为 3 的向量
func (a Action) Slice() []float64 {
	return []float64{a.Yaw, a.Pitch, a.Fire}
}

// TurretAgent 炮塔智能体：朝向状态、射击节流、观测/动作/奖励
type TurretAgent struct {
	cfg    config.TurretConfig
	shot   config.ProjectileConfig
	reward config.RewardConfig
	obs    config.ObservationConfig

	world       World
	projectiles *ProjectileModel

	// 骨架，缺失的部件对应功能停用
	root          models.Vector3
	hasBase       bool
	hasPivot      bool
	baseOffset    models.Vector3
	pivotOffset   models.Vector3
	muzzleOffset  models.Vector3
	muzzleOnPivot bool

	state    AgentState
	yaw      float64
	pitch    float64
	nextFire float64

	pending       float64
	episodeReturn float64
	shots         int
	hits          int
}

// NewTurretAgent 创建炮塔，骨架引用缺失时回退而不是失败
// projectiles 为 nil 时开火不生成子弹
func NewTurretAgent(cfg *config.Config, world World, projectiles *ProjectileModel) *TurretAgent {
	a := &TurretAgent{
		cfg:         cfg.Turret,
		shot:        cfg.Projectile,
		reward:      cfg.Reward,
		obs:         cfg.Observation,
		world:       world,
		projectiles: projectiles,
		root:        models.Vector3(cfg.Turret.Position),
	}
	a.resolveRig(cfg.Turret.Rig)

	if a.projectiles == nil {
		log.Warnf("炮塔未配置子弹模型，开火将不生成子弹")
	}
	return a
}

func (a *TurretAgent) resolveRig(rig config.RigConfig) {
	if rig.Base != nil {
		a.hasBase = true
		a.baseOffset = models.Vector3(*rig.Base)
	} else {
		log.Warnf("炮塔缺少底座，偏航与朝向判断停用")
	}

	if rig.Pivot != nil {
		a.hasPivot = true
		a.pivotOffset = models.Vector3(*rig.Pivot)
	} else {
		log.Warnf("炮塔缺少炮管枢轴，俯仰固定为0")
	}

	a.muzzleOnPivot = a.hasPivot
	if rig.Muzzle != nil {
		a.muzzleOffset = models.Vector3(*rig.Muzzle)
		return
	}
	a.muzzleOffset = defaultMuzzleOffset
	if a.hasPivot {
		log.Warnf("炮塔缺少枪口，使用炮管前方默认枪口")
	} else {
		log.Warnf("炮塔缺少枪口，使用根节点前方默认枪口")
	}
}

// BeginEpisode 重置朝向和射击计时，并通知世界重置无人机
func (a *TurretAgent) BeginEpisode() {
	a.yaw = 0
	a.pitch = 0
	a.nextFire = 0
	a.pending = 0
	a.episodeReturn = 0
	a.shots = 0
	a.hits = 0

	if a.world != nil {
		a.world.ResetAll()
	}
	a.state = Active
}

// ApplyAction 应用动作，满足开火条件时返回新生成的子弹
func (a *TurretAgent) ApplyAction(action Action, now, dt float64) *Projectile {
	if a.state != Active {
		return nil
	}

	yawCmd := clamp(sanitize(action.Yaw), -1, 1)
	pitchCmd := clamp(sanitize(action.Pitch), -1, 1)

	if a.hasBase {
		a.yaw += yawCmd * a.cfg.BaseTurnSpeed * dt
	}
	if a.hasPivot {
		a.pitch = clamp(a.pitch+pitchCmd*a.cfg.BarrelTurnSpeed*dt, a.cfg.MinPitch, a.cfg.MaxPitch)
	}

	var fired *Projectile
	if action.Fire >= a.shot.FireThreshold && now >= a.nextFire {
		fired = a.fire()
		a.nextFire = now + 1/math.Max(1e-3, a.shot.FireRate)
		a.shots++
		a.AddReward(a.reward.Shooting)
	}

	if a.reward.OrientationMode != config.OrientationPerDrone && a.world != nil {
		a.GrantOrientationBonus(a.world.LiveDrones())
	}
	return fired
}

func (a *TurretAgent) fire() *Projectile {
	if a.projectiles == nil || !a.shot.Enabled {
		return nil
	}
	return a.projectiles.Spawn(a.MuzzlePose())
}

// GrantOrientationBonus 按未处于前方锥体内的比例扣分
func (a *TurretAgent) GrantOrientationBonus(drones []DroneSnapshot) {
	if len(drones) == 0 || !a.hasBase {
		return
	}
	inFront := 0
	for _, d := range drones {
		if a.InFront(d.Position) {
			inFront++
		}
	}
	frac := float64(inFront) / float64(len(drones))
	a.AddReward(a.reward.Orientation * (1 - frac))
}

// OnHitConfirmed 命中奖励，每次确认命中调用一次
func (a *TurretAgent) OnHitConfirmed() {
	a.hits++
	a.AddReward(a.reward.Hit)
}

// AddReward 累加奖励
func (a *TurretAgent) AddReward(r float64) {
	a.pending += r
	a.episodeReturn += r
}

// ConsumeReward 取出自上次取出以来累计的奖励
func (a *TurretAgent) ConsumeReward() float64 {
	r := a.pending
	a.pending = 0
	return r
}

// Forward 底座的水平前方向量
func (a *TurretAgent) Forward() models.Vector3 {
	return models.Forward(a.yaw, 0)
}

// InFront 目标是否在前方锥体内，点积严格大于阈值
func (a *TurretAgent) InFront(target models.Vector3) bool {
	if !a.hasBase {
		return false
	}
	return inFrontCone(facingScore(a.Forward(), target.Sub(a.root)), a.cfg.FrontThreshold)
}

func facingScore(forward, rel models.Vector3) float64 {
	return forward.Dot(rel.Normalized())
}

func inFrontCone(score, threshold float64) bool {
	return score > threshold
}

// basePosition 底座世界坐标，缺少底座时为根节点
func (a *TurretAgent) basePosition() models.Vector3 {
	if !a.hasBase {
		return a.root
	}
	return a.root.Add(a.baseOffset)
}

// MuzzlePose 枪口世界位姿
func (a *TurretAgent) MuzzlePose() models.Pose {
	base := a.basePosition()
	if a.muzzleOnPivot {
		pivot := base.Add(models.Rotate(a.pivotOffset, a.yaw, 0))
		return models.Pose{
			Position: pivot.Add(models.Rotate(a.muzzleOffset, a.yaw, a.pitch)),
			Yaw:      a.yaw,
			Pitch:    a.pitch,
		}
	}
	return models.Pose{
		Position: base.Add(models.Rotate(a.muzzleOffset, a.yaw, 0)),
		Yaw:      a.yaw,
	}
}

// Yaw 当前偏航角，不做折算
func (a *TurretAgent) Yaw() float64 { return a.yaw }

// Pitch 当前俯仰角
func (a *TurretAgent) Pitch() float64 { return a.pitch }

// Position 炮塔根节点位置
func (a *TurretAgent) Position() models.Vector3 { return a.root }

// State 当前状态
func (a *TurretAgent) State() AgentState { return a.state }

// EpisodeReturn 本回合累计奖励
func (a *TurretAgent) EpisodeReturn() float64 { return a.episodeReturn }

// Shots 本回合开火次数
func (a *TurretAgent) Shots() int { return a.shots }

// Hits 本回合命中次数
func (a *TurretAgent) Hits() int { return a.hits }

// Entity 状态快照
func (a *TurretAgent) Entity() models.TurretEntity {
	return models.TurretEntity{
		BaseEntity: models.BaseEntity{
			ID:       "turret",
			Type:     models.EntityTurret,
			Position: a.root,
			Yaw:      WrapDegrees(a.yaw),
		},
		Pitch:  a.pitch,
		Muzzle: a.MuzzlePose(),
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
