package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// Krauss Krauss随机跟驰模型
// 算法说明：
// 1. 安全速度：vl + (s - s0 - vl·T)/((v+vl)/(2b) + T)
// 2. 期望速度：min(v + aT, v0, vSafe)
// 3. 随机减速：期望速度减去ε·a·T·U(0,1)
type Krauss struct {
	common
	t       float64
	a       float64
	epsilon float64
	rng     *randengine.Engine
}

func newKrauss(p config.Krauss, rng *randengine.Engine) *Krauss {
	m := &Krauss{
		common:  common{name: entity.ModelKrauss, v0: p.V0, s0: p.S0, b: p.B},
		t:       math.Max(p.T, smallValue),
		a:       p.A,
		epsilon: p.Epsilon,
		rng:     rng,
	}
	m.k = m
	return m
}

func (m *Krauss) acc(s, v, dv, _, alphaT, alphaV0, alphaA float64, stochastic bool) float64 {
	t := m.t * alphaT
	a := m.a * alphaA
	vLead := v - dv
	vSafe := math.Inf(1)
	if !math.IsInf(s, 1) {
		vSafe = vLead + (s-m.s0-vLead*t)/((v+vLead)/(2*m.b)+t)
	}
	vDes := math.Min(math.Min(v+a*t, m.v0*alphaV0), vSafe)
	if stochastic && m.rng != nil && m.epsilon > 0 {
		vDes -= m.epsilon * a * t * m.rng.Float64()
	}
	vNew := math.Max(0, vDes)
	return math.Max((vNew-v)/t, -maxModelDeceleration)
}
