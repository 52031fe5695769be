package longitudinal

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// Gipps Gipps模型
// 功能：下一步速度取自由加速速度与安全速度的较小值
// 算法说明：
// 1. 自由速度：v + 2.5·a·T·(1-v/v0)·√(0.025+v/v0)
// 2. 安全速度：-bT + √(b²T² + vl² + 2b(s-s0))
// 3. 加速度：(vNew - v)/T
// 说明：alphaT缩放反应时间T，alphaV0、alphaA分别缩放v0与a
type Gipps struct {
	common
	t float64 // 反应时间
	a float64
}

func newGipps(p config.Gipps) *Gipps {
	m := &Gipps{
		common: common{name: entity.ModelGipps, v0: p.V0, s0: p.S0, b: p.B},
		t:      math.Max(p.T, smallValue),
		a:      p.A,
	}
	m.k = m
	return m
}

func (m *Gipps) safeSpeed(s, vLead, t float64) float64 {
	if math.IsInf(s, 1) {
		return s
	}
	bt := m.b * t
	disc := bt*bt + vLead*vLead + 2*m.b*(s-m.s0)
	if disc <= 0 {
		return 0
	}
	return -bt + math.Sqrt(disc)
}

func (m *Gipps) acc(s, v, dv, _, alphaT, alphaV0, alphaA float64, _ bool) float64 {
	v0 := math.Max(m.v0*alphaV0, smallValue)
	a := m.a * alphaA
	t := math.Max(m.t*alphaT, smallValue)
	x := v / v0
	vFree := v + 2.5*a*t*(1-x)*math.Sqrt(math.Max(0.025+x, 0))
	vNew := math.Max(0, math.Min(vFree, m.safeSpeed(s, v-dv, t)))
	return lo.Clamp((vNew-v)/t, -maxModelDeceleration, a)
}
