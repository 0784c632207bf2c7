// action.go

package sim

import (
	"math"
	"sync"
)

// ActionSource 根据当前观测给出下一步动作
type ActionSource interface {
	NextAction(obs []float32) Action
}

// ActionFunc 函数形式的 ActionSource
type ActionFunc func(obs []float32) Action

// NextAction 实现 ActionSource
func (f ActionFunc) NextAction(obs []float32) Action {
	return f(obs)
}

// Key 键盘按键
type Key string

const (
	KeyA     Key = "a"
	KeyD     Key = "d"
	KeyW     Key = "w"
	KeyS     Key = "s"
	KeySpace Key = "space"
)

// KeyboardSource 键盘适配器：A/D 控制偏航，W/S 控制俯仰，空格开火
// 按键状态由外部输入层推送，可跨 goroutine 更新
type KeyboardSource struct {
	enabled bool
	pressed map[Key]bool
	mutex   sync.Mutex
}

// NewKeyboardSource 创建键盘适配器
func NewKeyboardSource(enabled bool) *KeyboardSource {
	return &KeyboardSource{
		enabled: enabled,
		pressed: make(map[Key]bool),
	}
}

// SetEnabled 启用或停用，停用时输出全零
func (k *KeyboardSource) SetEnabled(enabled bool) {
	k.mutex.Lock()
	k.enabled = enabled
	k.mutex.Unlock()
}

// Press 按下
func (k *KeyboardSource) Press(key Key) {
	k.mutex.Lock()
	k.pressed[key] = true
	k.mutex.Unlock()
}

// Release 松开
func (k *KeyboardSource) Release(key Key) {
	k.mutex.Lock()
	delete(k.pressed, key)
	k.mutex.Unlock()
}

// SetPressed 用完整的按键集合替换当前状态
func (k *KeyboardSource) SetPressed(keys []Key) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	k.pressed = make(map[Key]bool, len(keys))
	for _, key := range keys {
		k.pressed[key] = true
	}
}

// NextAction 实现 ActionSource
func (k *KeyboardSource) NextAction(_ []float32) Action {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if !k.enabled {
		return Action{}
	}

	var a Action
	if k.pressed[KeyA] {
		a.Yaw -= 1
	}
	if k.pressed[KeyD] {
		a.Yaw += 1
	}
	if k.pressed[KeyW] {
		a.Pitch += 1
	}
	if k.pressed[KeyS] {
		a.Pitch -= 1
	}
	if k.pressed[KeySpace] {
		a.Fire = 1
	}
	return a
}

// AimAssistSource 脚本瞄准：转向观测中的第一架无人机，进入前方锥体后开火
type AimAssistSource struct {
	// Gain 角度误差(度)到动作的比例系数
	Gain float64
}

// NextAction 实现 ActionSource
func (s AimAssistSource) NextAction(obs []float32) Action {
	if len(obs) < StaticObservations+PerDroneObservations {
		return Action{}
	}
	slot := obs[StaticObservations : StaticObservations+PerDroneObservations]
	x, y, z := float64(slot[0]), float64(slot[1]), float64(slot[2])
	if x == 0 && y == 0 && z == 0 {
		return Action{}
	}

	gain := s.Gain
	if gain <= 0 {
		gain = 0.1
	}

	// 相对位置在底座局部坐标系中，z 为前方
	yawErr := math.Atan2(x, z) * 180 / math.Pi
	pitchErr := -math.Atan2(y, math.Hypot(x, z)) * 180 / math.Pi
	pitchNow := float64(obs[1]) * 180

	a := Action{
		Yaw:   clamp(yawErr*gain, -1, 1),
		Pitch: clamp((pitchErr-pitchNow)*gain, -1, 1),
	}
	if slot[7] > 0 && math.Abs(yawErr) < 5 {
		a.Fire = 1
	}
	return a
}
