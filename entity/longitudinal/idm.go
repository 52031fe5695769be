package longitudinal

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// IDM 智能驾驶模型
// 功能：a(1 - (v/v0)^δ - (s*/s)²)，s* = s0 + s1·√(v/v0) + max(0, vT + v·Δv/(2√(ab)))
// 说明：https://en.wikipedia.org/wiki/Intelligent_driver_model
type IDM struct {
	common
	t     float64 // 安全车头时距
	s1    float64 // 速度相关的间距项
	a     float64 // 最大加速度
	delta float64 // 加速度指数
}

func newIDM(p config.IDM) *IDM {
	if p.Delta == 0 {
		p.Delta = 4
	}
	m := &IDM{
		common: common{name: entity.ModelIDM, v0: p.V0, s0: p.S0, b: p.B},
		t:      p.T,
		s1:     p.S1,
		a:      p.A,
		delta:  p.Delta,
	}
	m.k = m
	return m
}

// desiredGap 动态期望间距s*
func (m *IDM) desiredGap(v, dv, t, a, v0 float64) float64 {
	return m.s0 + m.s1*math.Sqrt(v/v0) + math.Max(0, v*t+v*dv/(2*math.Sqrt(a*m.b)))
}

func (m *IDM) acc(s, v, dv, _, alphaT, alphaV0, alphaA float64, _ bool) float64 {
	if s <= 0 {
		// 已经接触前车，紧急制动
		return -maxModelDeceleration
	}
	v0 := math.Max(m.v0*alphaV0, smallValue)
	t := m.t * alphaT
	a := m.a * alphaA
	sStar := m.desiredGap(v, dv, t, a, v0)
	acc := a * (1 - math.Pow(v/v0, m.delta) - math.Pow(sStar/s, 2))
	return lo.Clamp(acc, -maxModelDeceleration, a)
}
