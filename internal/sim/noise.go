package sim

import (
	"github.com/aquilax/go-perlin"
)

// CoherentNoise 连续平滑的二维噪声，输出范围 [0,1]
type CoherentNoise interface {
	Sample(x, y float64) float64
}

// PerlinNoise 基于 Perlin 噪声的实现，创建后只读，可被多架无人机共享
type PerlinNoise struct {
	p *perlin.Perlin
}

// NewPerlinNoise 创建 Perlin 噪声
func NewPerlinNoise(seed int64) *PerlinNoise {
	return &PerlinNoise{p: perlin.NewPerlin(2, 2, 3, seed)}
}

// Sample 采样并映射到 [0,1]
func (n *PerlinNoise) Sample(x, y float64) float64 {
	return clamp01(0.5 + 0.5*n.p.Noise2D(x, y))
}
