package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// Memory 记忆效应（服务水平）
// 功能：驾驶员长时间处于拥堵后变得"保守"，增大车头时距、降低期望速度与加速度
// 算法说明：
// 1. 服务水平λ以时间常数tau跟随v/v0，λ∈[0,1]，初始为1
// 2. alphaA = αAmin + (1-αAmin)·λ，alphaV0同理，alphaT = αTmax + (1-αTmax)·λ
type Memory struct {
	tau        float64
	alphaAMin  float64
	alphaV0Min float64
	alphaTMax  float64
	level      float64
}

func NewMemory(cfg *config.Memory) *Memory {
	if cfg == nil {
		return nil
	}
	return &Memory{
		tau:        math.Max(cfg.Tau, 0),
		alphaAMin:  cfg.AlphaAMin,
		alphaV0Min: cfg.AlphaV0Min,
		alphaTMax:  cfg.AlphaTMax,
		level:      1,
	}
}

// Update 更新服务水平
// 参数：dt-时间步长，v-当前速度，v0-期望速度
func (m *Memory) Update(dt, v, v0 float64) {
	target := 1.
	if v0 > 0 {
		target = lo.Clamp(v/v0, 0, 1)
	}
	if m.tau <= dt {
		m.level = target
		return
	}
	m.level += dt / m.tau * (target - m.level)
}

// Level 当前服务水平
func (m *Memory) Level() float64 {
	return m.level
}

// Alphas 驾驶员可变性系数alphaT, alphaV0, alphaA
func (m *Memory) Alphas() (float64, float64, float64) {
	alphaT := m.alphaTMax + (1-m.alphaTMax)*m.level
	alphaV0 := m.alphaV0Min + (1-m.alphaV0Min)*m.level
	alphaA := m.alphaAMin + (1-m.alphaAMin)*m.level
	return alphaT, alphaV0, alphaA
}

// Noise 加速度噪声
// 功能：以Ornstein-Uhlenbeck过程模拟驾驶员的加速度误差
// 说明：tau非正时退化为白噪声
type Noise struct {
	tau           float64
	fluctStrength float64
	xi            float64
}

func NewNoise(cfg *config.Noise) *Noise {
	if cfg == nil {
		return nil
	}
	return &Noise{tau: cfg.Tau, fluctStrength: cfg.FluctStrength}
}

// Update 推进噪声过程并返回加速度误差
func (n *Noise) Update(dt float64, rng *randengine.Engine) float64 {
	if rng == nil {
		return 0
	}
	n.xi = rng.OU(n.xi, dt, n.tau)
	return n.fluctStrength * n.xi
}
