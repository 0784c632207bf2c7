package sim

import "github.com/jacl-coder/SkyGuard-Server/internal/models"

// Integrator 刚体积分器，接收每步期望线速度和角速度，返回新的位置
type Integrator interface {
	Integrate(position, linear, angular models.Vector3, dt float64) models.Vector3
}

// EulerIntegrator 显式欧拉积分，角速度只作为输出状态不影响位置
type EulerIntegrator struct{}

// Integrate 积分一步
func (EulerIntegrator) Integrate(position, linear, _ models.Vector3, dt float64) models.Vector3 {
	return position.Add(linear.Scale(dt))
}
