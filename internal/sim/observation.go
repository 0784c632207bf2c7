package sim

import (
	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

const (
	// StaticObservations 偏航、俯仰、横滚、位置(3)、数量
	StaticObservations = 7
	// PerDroneObservations 相对位置(3)、速度(3)、距离、是否在前方
	PerDroneObservations = 8
)

// ObservationSize 观测向量长度
func ObservationSize(maxDrones int) int {
	if maxDrones < 0 {
		maxDrones = 0
	}
	return StaticObservations + maxDrones*PerDroneObservations
}

// ObservationSize 当前配置下的观测向量长度
func (a *TurretAgent) ObservationSize() int {
	return ObservationSize(a.obs.MaxDrones)
}

// BuildObservation 构造定长观测向量并计入存在惩罚
// drones 需为本帧快照，超出 MaxDrones 的部分被截断，空位补零
func (a *TurretAgent) BuildObservation(drones []DroneSnapshot) []float32 {
	a.AddReward(a.reward.Existence)

	o := a.obs
	out := make([]float32, ObservationSize(o.MaxDrones))
	posScale := nonZero(o.PositionScale)
	velScale := nonZero(o.VelocityScale)
	distScale := nonZero(o.DistanceScale)

	yawObs := 0.0
	if a.hasBase {
		yawObs = NormAngle(a.yaw)
	}
	pitchObs := 0.0
	if a.hasPivot {
		pitchObs = NormAngle(a.pitch)
	}

	out[0] = float32(yawObs)
	out[1] = float32(pitchObs)
	out[2] = 0
	out[3] = float32(a.root.X / posScale)
	out[4] = float32(a.root.Y / posScale)
	out[5] = float32(a.root.Z / posScale)
	if o.MaxDrones > 0 {
		out[6] = float32(clamp01(float64(len(drones)) / float64(o.MaxDrones)))
	}

	base := a.basePosition()
	for i, d := range drones {
		if i >= o.MaxDrones {
			break
		}
		var rel models.Vector3
		if a.hasBase {
			rel = models.InverseYaw(d.Position.Sub(base), a.yaw)
		} else {
			rel = d.Position.Sub(a.root)
		}

		slot := out[StaticObservations+i*PerDroneObservations:]
		slot[0] = float32(rel.X / posScale)
		slot[1] = float32(rel.Y / posScale)
		slot[2] = float32(rel.Z / posScale)
		slot[3] = float32(d.Velocity.X / velScale)
		slot[4] = float32(d.Velocity.Y / velScale)
		slot[5] = float32(d.Velocity.Z / velScale)
		slot[6] = float32(clamp01(d.Position.Sub(a.root).Length() / distScale))
		if a.InFront(d.Position) {
			slot[7] = 1
		}
	}

	if a.reward.OrientationMode == config.OrientationPerDrone {
		for _, d := range drones {
			if !a.InFront(d.Position) {
				a.AddReward(a.reward.Orientation)
			}
		}
	}
	return out
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
