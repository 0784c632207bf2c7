// vector.go

package models

import "math"

// Vector3 三维向量，Y 轴朝上
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec3 构造向量
func Vec3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Add 向量相加
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub 向量相减
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale 数乘
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Dot 点积
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length 长度
func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized 单位向量，长度过小时返回零向量
func (v Vector3) Normalized() Vector3 {
	l := v.Length()
	if l < 1e-9 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// IsZero 是否为零向量
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Pose 位置与朝向，角度单位为度
type Pose struct {
	Position Vector3 `json:"position"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
}

// Forward 朝向的前方向量，pitch 为正时低头
func (p Pose) Forward() Vector3 {
	return Forward(p.Yaw, p.Pitch)
}

// Forward 由偏航和俯仰计算前方向量
func Forward(yaw, pitch float64) Vector3 {
	y := yaw * math.Pi / 180
	x := pitch * math.Pi / 180
	return Vector3{
		X: math.Cos(x) * math.Sin(y),
		Y: -math.Sin(x),
		Z: math.Cos(x) * math.Cos(y),
	}
}

// Rotate 把局部坐标下的偏移按 (yaw, pitch) 旋转到世界坐标
func Rotate(local Vector3, yaw, pitch float64) Vector3 {
	y := yaw * math.Pi / 180
	x := pitch * math.Pi / 180
	sy, cy := math.Sin(y), math.Cos(y)
	sx, cx := math.Sin(x), math.Cos(x)

	right := Vector3{cy, 0, -sy}
	up := Vector3{sx * sy, cx, sx * cy}
	fwd := Vector3{cx * sy, -sx, cx * cy}

	return right.Scale(local.X).Add(up.Scale(local.Y)).Add(fwd.Scale(local.Z))
}

// InverseYaw 把世界方向转换到仅绕 Y 轴旋转 yaw 的局部坐标
func InverseYaw(world Vector3, yaw float64) Vector3 {
	y := yaw * math.Pi / 180
	sy, cy := math.Sin(y), math.Cos(y)
	return Vector3{
		X: world.X*cy - world.Z*sy,
		Y: world.Y,
		Z: world.X*sy + world.Z*cy,
	}
}
