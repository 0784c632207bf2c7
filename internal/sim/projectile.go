// projectile.go

package sim

import (
	"github.com/google/uuid"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// ProjectileModel 子弹生成参数
type ProjectileModel struct {
	cfg config.ProjectileConfig
}

// NewProjectileModel 创建子弹模型
func NewProjectileModel(cfg config.ProjectileConfig) *ProjectileModel {
	return &ProjectileModel{cfg: cfg}
}

// Projectile 飞行中的子弹
type Projectile struct {
	ID              string
	Position        models.Vector3
	Previous        models.Vector3
	Velocity        models.Vector3
	AngularVelocity models.Vector3
	Yaw             float64
	Pitch           float64
	UseGravity      bool
	Remaining       float64 // 剩余生命周期(秒)
	Radius          float64

	hit       bool
	destroyed bool
	target    string
}

// Spawn 在枪口位姿处生成子弹，速度沿枪口前方
func (m *ProjectileModel) Spawn(muzzle models.Pose) *Projectile {
	return &Projectile{
		ID:        uuid.NewString(),
		Position:  muzzle.Position,
		Previous:  muzzle.Position,
		Velocity:  muzzle.Forward().Scale(m.cfg.MuzzleSpeed),
		Yaw:       muzzle.Yaw,
		Pitch:     muzzle.Pitch,
		Remaining: m.cfg.Lifetime,
		Radius:    m.cfg.Radius,
	}
}

// Tick 推进子弹，生命周期耗尽后在下一步自毁，返回本步是否移动
func (p *Projectile) Tick(integrator Integrator, dt float64) bool {
	if p.destroyed {
		return false
	}
	if p.Remaining <= 0 {
		p.destroyed = true
		return false
	}
	p.Previous = p.Position
	p.Position = integrator.Integrate(p.Position, p.Velocity, p.AngularVelocity, dt)
	p.Remaining -= dt
	return true
}

// OnImpact 处理碰撞事件，只有第一次命中目标返回 true
func (p *Projectile) OnImpact(ev models.CollisionEvent) bool {
	if !p.Accepts(ev) {
		return false
	}

	p.hit = true
	p.destroyed = true
	p.target = ev.OtherID
	return true
}

// Accepts 事件是否会被本子弹认作命中，不改变状态
func (p *Projectile) Accepts(ev models.CollisionEvent) bool {
	return !p.hit && !p.destroyed && ev.SelfID == p.ID && ev.OtherTag.IsTarget()
}

// Alive 是否仍在场景中
func (p *Projectile) Alive() bool {
	return !p.destroyed
}

// Hit 是否已确认命中
func (p *Projectile) Hit() bool {
	return p.hit
}

// Target 命中的目标ID
func (p *Projectile) Target() string {
	return p.target
}

// Entity 状态快照
func (p *Projectile) Entity() models.ProjectileEntity {
	return models.ProjectileEntity{
		BaseEntity: models.BaseEntity{
			ID:       p.ID,
			Type:     models.EntityProjectile,
			Position: p.Position,
			Yaw:      p.Yaw,
			Velocity: p.Velocity,
		},
		Pitch:    p.Pitch,
		LifeTime: p.Remaining,
	}
}
