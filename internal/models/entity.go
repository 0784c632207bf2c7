// entity.go

package models

import (
	"time"
)

// EntityType 实体类型
type EntityType string

const (
	// EntityDrone 无人机实体
	EntityDrone EntityType = "drone"
	// EntityProjectile 投射物实体
	EntityProjectile EntityType = "projectile"
	// EntityTurret 炮塔实体
	EntityTurret EntityType = "turret"
)

// Tag 碰撞标签，按值比较
type Tag uint8

const (
	// TagNone 无标签
	TagNone Tag = iota
	// TagBullet 子弹
	TagBullet
	// TagDrone 无人机
	TagDrone
	// TagEnemy 敌方目标
	TagEnemy
)

func (t Tag) String() string {
	switch t {
	case TagBullet:
		return "Bullet"
	case TagDrone:
		return "Drone"
	case TagEnemy:
		return "Enemy"
	default:
		return "None"
	}
}

// IsTarget 是否为子弹可命中的目标
func (t Tag) IsTarget() bool {
	return t == TagDrone || t == TagEnemy
}

// EventKind 碰撞事件类型
type EventKind uint8

const (
	// TriggerEnter 体积重叠进入
	TriggerEnter EventKind = iota + 1
	// CollisionEnter 实体碰撞进入
	CollisionEnter
)

func (k EventKind) String() string {
	switch k {
	case TriggerEnter:
		return "trigger_enter"
	case CollisionEnter:
		return "collision_enter"
	default:
		return "unknown"
	}
}

// CollisionEvent 碰撞事件
type CollisionEvent struct {
	SelfID   string    `json:"self_id"`
	OtherID  string    `json:"other_id"`
	OtherTag Tag       `json:"other_tag"`
	Kind     EventKind `json:"kind"`
}

// BaseEntity 基础实体结构
type BaseEntity struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	Position  Vector3    `json:"position"`
	Yaw       float64    `json:"yaw"` // 角度(0-360)
	Velocity  Vector3    `json:"velocity"`
	CreatedAt time.Time  `json:"created_at"`
}

// DroneEntity 无人机状态快照
type DroneEntity struct {
	BaseEntity
	AngularVelocity Vector3 `json:"angular_velocity"`
	Hits            int     `json:"hits"`
}

// ProjectileEntity 投射物状态快照
type ProjectileEntity struct {
	BaseEntity
	Pitch    float64 `json:"pitch"`
	LifeTime float64 `json:"life_time"` // 剩余生命周期(秒)
}

// TurretEntity 炮塔状态快照
type TurretEntity struct {
	BaseEntity
	Pitch  float64 `json:"pitch"`
	Muzzle Pose    `json:"muzzle"`
}

// WorldSnapshot 一帧世界状态
type WorldSnapshot struct {
	Step        int                `json:"step"`
	Time        float64            `json:"time"`
	Turret      TurretEntity       `json:"turret"`
	Drones      []DroneEntity      `json:"drones"`
	Projectiles []ProjectileEntity `json:"projectiles"`
}
