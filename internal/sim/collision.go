package sim

import (
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// CollisionSource 碰撞事件来源
type CollisionSource interface {
	Detect(projectiles []*Projectile, drones []DroneSnapshot) []models.CollisionEvent
}

// SweepCollider 子弹扫掠线段对无人机球体的检测
// 进入触发球（无人机半径加子弹半径）产生 TriggerEnter，再进入实体球产生 CollisionEnter
type SweepCollider struct {
	DroneRadius float64
}

// Detect 检测本步所有子弹与无人机的相交
func (c SweepCollider) Detect(projectiles []*Projectile, drones []DroneSnapshot) []models.CollisionEvent {
	var events []models.CollisionEvent
	for _, p := range projectiles {
		if !p.Alive() {
			continue
		}
		for _, d := range drones {
			dist := segmentPointDistance(p.Previous, p.Position, d.Position)
			if dist > c.DroneRadius+p.Radius {
				continue
			}
			events = append(events, models.CollisionEvent{
				SelfID:   p.ID,
				OtherID:  d.ID,
				OtherTag: models.TagDrone,
				Kind:     models.TriggerEnter,
			})
			if dist <= c.DroneRadius {
				events = append(events, models.CollisionEvent{
					SelfID:   p.ID,
					OtherID:  d.ID,
					OtherTag: models.TagDrone,
					Kind:     models.CollisionEnter,
				})
			}
		}
	}
	return events
}

// segmentPointDistance 点到线段 ab 的最短距离
func segmentPointDistance(a, b, p models.Vector3) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < 1e-12 {
		return p.Sub(a).Length()
	}
	t := clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return a.Add(ab.Scale(t)).Sub(p).Length()
}
