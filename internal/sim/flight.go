// flight.go

package sim

import (
	"math"
	"math/rand/v2"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// FlightController 单架无人机的飞控，状态只由自身修改
type FlightController struct {
	params     config.DroneConfig
	bounds     Box
	margins    models.Vector3
	noise      CoherentNoise
	integrator Integrator
	rng        *rand.Rand
	ready      bool

	// 竖直方向的内部活动带
	yInner Interval

	position        models.Vector3
	yaw             float64
	velocity        models.Vector3
	angularVelocity models.Vector3

	verticalVel  float64
	lift         float64
	targetYaw    float64
	yawTimer     float64
	targetHeight float64
	heightTimer  float64
	noiseTime    float64
}

// NewFlightController 创建飞控，rng 为该无人机独占
func NewFlightController(noise CoherentNoise, integrator Integrator, rng *rand.Rand) *FlightController {
	if integrator == nil {
		integrator = EulerIntegrator{}
	}
	return &FlightController{
		noise:      noise,
		integrator: integrator,
		rng:        rng,
	}
}

// Initialize 在安全区内随机放置并重置计时器和速度，边界退化时不做任何事
func (f *FlightController) Initialize(bounds Box, margins models.Vector3, params config.DroneConfig) bool {
	if bounds.Degenerate() {
		return false
	}

	f.params = params
	f.bounds = bounds
	f.margins = margins
	f.yInner, _ = bounds.Y.Shrink(params.YMarginFromEdge)
	f.ready = true

	f.position = bounds.SampleSafe(margins, f.rng)
	f.yaw = uniform(f.rng, 0, 360)
	f.targetYaw = f.yaw
	f.yawTimer = uniform(f.rng, params.ChangeInterval*0.6, params.ChangeInterval*1.4)
	f.noiseTime = f.rng.Float64() * 100
	f.pickFloatTarget()

	f.resetMotion()
	return true
}

// Ready 是否已成功初始化
func (f *FlightController) Ready() bool {
	return f.ready
}

// Respawn 原地重置：重新采样位置和朝向，速度清零，目标重新选取
func (f *FlightController) Respawn() {
	if !f.ready {
		return
	}
	p := f.params

	f.position = f.bounds.SampleSafe(f.margins, f.rng)
	f.yaw = uniform(f.rng, 0, 360)
	f.resetMotion()

	f.targetYaw = f.yaw + uniform(f.rng, -p.RandomSpread, p.RandomSpread)
	f.pickFloatTarget()
	f.yawTimer = uniform(f.rng, p.ChangeInterval*0.6, p.ChangeInterval*1.4)
}

func (f *FlightController) resetMotion() {
	f.velocity = models.Vector3{}
	f.angularVelocity = models.Vector3{}
	f.verticalVel = 0
	f.lift = f.params.Lift
}

// Tick 推进一个固定步长
func (f *FlightController) Tick(dt float64) {
	if !f.ready || !(dt > 0) {
		return
	}

	f.updateLift(dt)
	f.updateHeading(dt)
	f.updateHeight(dt)
	f.steer(dt)
	f.applyMotion(dt)
	f.clampPosition()
}

// updateLift 升力弹簧：误差比例升力，减重力加升力，再按 1-drag*dt 衰减
func (f *FlightController) updateLift(dt float64) {
	p := f.params
	err := f.targetHeight - f.position.Y
	f.lift = clamp(p.Lift+err*2, p.Lift*0.5, p.MaxLift)

	f.verticalVel -= p.Gravity * dt
	f.verticalVel += f.lift * dt
	f.verticalVel *= math.Max(0, 1-p.Drag*dt)
}

// updateHeading 靠墙时每步朝内重新选向，否则计时到期才随机游走
func (f *FlightController) updateHeading(dt float64) {
	p := f.params
	f.yawTimer -= dt

	if inward, near := f.bounds.InwardDirection(f.position, p.MarginXZ); near {
		base := YawFromDirection(inward, f.yaw)
		f.targetYaw = base + uniform(f.rng, -p.BoundarySpread, p.BoundarySpread)
		f.yawTimer = uniform(f.rng, 0.4, 1.0)
		return
	}

	if f.yawTimer <= 0 {
		f.targetYaw = f.yaw + uniform(f.rng, -p.RandomSpread, p.RandomSpread)
		f.yawTimer = uniform(f.rng, p.ChangeInterval*0.7, p.ChangeInterval*1.3)
	}
}

// updateHeight 贴近内部活动带边缘时强制回中，否则计时到期才换目标高度
func (f *FlightController) updateHeight(dt float64) {
	p := f.params
	f.heightTimer -= dt
	y := f.position.Y
	mid := f.yInner.Mid()

	switch {
	case y < f.yInner.Min+p.EdgeThreshold:
		f.targetHeight = mid + uniform(f.rng, 0, p.BaseVerticalJitter)
		f.verticalVel = math.Abs(f.verticalVel)
		f.heightTimer = uniform(f.rng, 0.5, 1.2)
	case y > f.yInner.Max-p.EdgeThreshold:
		f.targetHeight = mid - uniform(f.rng, 0, p.BaseVerticalJitter)
		f.verticalVel = -math.Abs(f.verticalVel)
		f.heightTimer = uniform(f.rng, 0.5, 1.2)
	case f.heightTimer <= 0:
		f.pickFloatTarget()
	}
}

func (f *FlightController) pickFloatTarget() {
	p := f.params
	mid := f.yInner.Mid()
	target := mid + uniform(f.rng, -p.BaseVerticalJitter, p.BaseVerticalJitter)

	lo, hi := f.yInner.Min+p.TargetInset, f.yInner.Max-p.TargetInset
	if lo > hi {
		lo, hi = mid, mid
	}
	f.targetHeight = clamp(target, lo, hi)
	f.heightTimer = uniform(f.rng, p.VerticalChangeInterval*0.7, p.VerticalChangeInterval*1.3)
}

// steer 目标偏航叠加平滑噪声后按恒定角速度转向
func (f *FlightController) steer(dt float64) {
	p := f.params
	f.noiseTime += dt * p.NoiseYawSpeed

	yawNoise := 0.0
	if f.noise != nil {
		yawNoise = (f.noise.Sample(f.noiseTime, 0) - 0.5) * 2 * p.NoiseYawAmp
	}
	f.yaw = RotateTowards(f.yaw, f.targetYaw+yawNoise, p.TurnSpeed*dt)
}

func (f *FlightController) applyMotion(dt float64) {
	p := f.params
	forward := models.Forward(f.yaw, 0).Scale(p.BaseSpeed)
	f.velocity = models.Vector3{X: forward.X, Y: f.verticalVel, Z: forward.Z}

	jitter := 0.0
	if f.noise != nil {
		jitter = (f.noise.Sample(0, f.noiseTime*0.7) - 0.5) * 2 * p.VerticalJitterNoise
	}
	f.angularVelocity = models.Vector3{
		X: math.Sin(f.noiseTime*1.3) * 0.1,
		Y: jitter * 0.2,
		Z: math.Cos(f.noiseTime*1.1) * 0.1,
	}

	f.position = f.integrator.Integrate(f.position, f.velocity, f.angularVelocity, dt)
}

// clampPosition 截断到世界边界，竖直方向贴边时去掉向外的速度
func (f *FlightController) clampPosition() {
	pos := f.position
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		pos = f.bounds.Center()
		f.verticalVel = 0
	}
	clamped := f.bounds.Clamp(pos)

	if clamped.Y <= f.bounds.Y.Min && f.verticalVel < 0 {
		f.verticalVel = 0
		f.velocity.Y = 0
	}
	if clamped.Y >= f.bounds.Y.Max && f.verticalVel > 0 {
		f.verticalVel = 0
		f.velocity.Y = 0
	}
	f.position = clamped
}

// Position 当前位置
func (f *FlightController) Position() models.Vector3 {
	return f.position
}

// Velocity 本步的线速度
func (f *FlightController) Velocity() models.Vector3 {
	return f.velocity
}

// AngularVelocity 本步的噪声摆动角速度
func (f *FlightController) AngularVelocity() models.Vector3 {
	return f.angularVelocity
}

// Yaw 当前偏航角，范围 [0,360)
func (f *FlightController) Yaw() float64 {
	return f.yaw
}

// Lift 当前升力
func (f *FlightController) Lift() float64 {
	return f.lift
}

// TargetHeight 当前目标高度
func (f *FlightController) TargetHeight() float64 {
	return f.targetHeight
}
