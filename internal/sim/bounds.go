// bounds.go

package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/jacl-coder/SkyGuard-Server/internal/models"
)

// ErrInvalidBounds 世界边界不可用
var ErrInvalidBounds = errors.New("invalid world bounds")

// Interval 闭区间
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width 区间宽度
func (i Interval) Width() float64 {
	return i.Max - i.Min
}

// Mid 区间中点
func (i Interval) Mid() float64 {
	return (i.Min + i.Max) * 0.5
}

// Clamp 把 v 限制在区间内
func (i Interval) Clamp(v float64) float64 {
	if v < i.Min {
		return i.Min
	}
	if v > i.Max {
		return i.Max
	}
	return v
}

// Contains 是否在区间内
func (i Interval) Contains(v float64) bool {
	return v >= i.Min && v <= i.Max
}

// Shrink 两端各收缩 m，收缩后为空时退化为中点并返回 false
func (i Interval) Shrink(m float64) (Interval, bool) {
	lo, hi := i.Min+m, i.Max-m
	if lo > hi {
		mid := i.Mid()
		return Interval{mid, mid}, false
	}
	return Interval{lo, hi}, true
}

// Box 轴对齐包围盒，X/Z 为水平轴，Y 为竖直轴
type Box struct {
	X Interval `json:"x"`
	Y Interval `json:"y"`
	Z Interval `json:"z"`
}

// Clamp 把点限制在盒内，超出部分截断
func (b Box) Clamp(p models.Vector3) models.Vector3 {
	return models.Vector3{X: b.X.Clamp(p.X), Y: b.Y.Clamp(p.Y), Z: b.Z.Clamp(p.Z)}
}

// Contains 点是否在盒内
func (b Box) Contains(p models.Vector3) bool {
	return b.X.Contains(p.X) && b.Y.Contains(p.Y) && b.Z.Contains(p.Z)
}

// Degenerate 是否存在宽度为零或反转的轴
func (b Box) Degenerate() bool {
	return !(b.X.Width() > 0) || !(b.Y.Width() > 0) || !(b.Z.Width() > 0)
}

// Center 盒中心
func (b Box) Center() models.Vector3 {
	return models.Vector3{X: b.X.Mid(), Y: b.Y.Mid(), Z: b.Z.Mid()}
}

// SafeBox 按各轴边距收缩，返回值 ok 为 false 表示至少一个轴退化为中点
func (b Box) SafeBox(margins models.Vector3) (Box, bool) {
	x, okX := b.X.Shrink(margins.X)
	y, okY := b.Y.Shrink(margins.Y)
	z, okZ := b.Z.Shrink(margins.Z)
	return Box{X: x, Y: y, Z: z}, okX && okY && okZ
}

// SampleSafe 在收缩后的安全区内均匀采样
func (b Box) SampleSafe(margins models.Vector3, rng *rand.Rand) models.Vector3 {
	safe, _ := b.SafeBox(margins)
	return safe.Sample(rng)
}

// Sample 在盒内均匀采样
func (b Box) Sample(rng *rand.Rand) models.Vector3 {
	return models.Vector3{
		X: uniform(rng, b.X.Min, b.X.Max),
		Y: uniform(rng, b.Y.Min, b.Y.Max),
		Z: uniform(rng, b.Z.Min, b.Z.Max),
	}
}

// InwardDirection 计算靠近水平墙面时的向内方向
// 所有距离小于 margin 的墙面向内方向求和后归一化，不靠墙时返回 false
func (b Box) InwardDirection(p models.Vector3, margin float64) (models.Vector3, bool) {
	var dir models.Vector3
	near := false

	if p.X-b.X.Min < margin {
		dir.X += 1
		near = true
	}
	if b.X.Max-p.X < margin {
		dir.X -= 1
		near = true
	}
	if p.Z-b.Z.Min < margin {
		dir.Z += 1
		near = true
	}
	if b.Z.Max-p.Z < margin {
		dir.Z -= 1
		near = true
	}

	if !near {
		return models.Vector3{}, false
	}
	// 两侧同时靠墙时方向抵消为零，交给调用方回退
	return dir.Normalized(), true
}

// WorldBounds 世界边界与安全边距
type WorldBounds struct {
	Box
	Margin float64 `json:"margin"`
}

// SpawnMargins 生成时各轴使用的边距，竖直轴取一半
func (w WorldBounds) SpawnMargins() models.Vector3 {
	return models.Vector3{X: w.Margin, Y: w.Margin * 0.5, Z: w.Margin}
}

// Validate 检查边界是否可用于生成
func (w WorldBounds) Validate() error {
	if w.Box.Degenerate() {
		return fmt.Errorf("%w: 存在宽度为零或反转的轴", ErrInvalidBounds)
	}
	m := w.SpawnMargins()
	if m.X*2 >= w.X.Width() {
		return fmt.Errorf("%w: 边距 %.2f 不小于 X 轴半宽 %.2f", ErrInvalidBounds, m.X, w.X.Width()/2)
	}
	if m.Z*2 >= w.Z.Width() {
		return fmt.Errorf("%w: 边距 %.2f 不小于 Z 轴半宽 %.2f", ErrInvalidBounds, m.Z, w.Z.Width()/2)
	}
	if m.Y*2 >= w.Y.Width() {
		return fmt.Errorf("%w: 边距 %.2f 不小于 Y 轴半宽 %.2f", ErrInvalidBounds, m.Y, w.Y.Width()/2)
	}
	return nil
}

// YawFromDirection 由水平方向求偏航角，方向为零时返回 fallback
func YawFromDirection(dir models.Vector3, fallback float64) float64 {
	if math.Abs(dir.X) < 1e-6 && math.Abs(dir.Z) < 1e-6 {
		return fallback
	}
	return WrapDegrees(math.Atan2(dir.X, dir.Z) * 180 / math.Pi)
}

// WrapDegrees 把角度折算到 [0,360)
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// DeltaAngle 从 from 到 to 的最短有符号角差，范围 (-180,180]
func DeltaAngle(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// RotateTowards 以最大步长 maxDelta 从 cur 转向 target
func RotateTowards(cur, target, maxDelta float64) float64 {
	d := DeltaAngle(cur, target)
	if math.Abs(d) <= maxDelta {
		return WrapDegrees(cur + d)
	}
	return WrapDegrees(cur + math.Copysign(maxDelta, d))
}

// NormAngle 把角度归一化到 [-1,1]
func NormAngle(deg float64) float64 {
	deg = WrapDegrees(deg)
	if deg > 180 {
		deg -= 360
	}
	return deg / 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
