package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// NSM Nagel-Schreckenberg元胞自动机
// 算法说明（长度单位为元胞，速度单位为元胞/步）：
// 1. 加速：v' = min(v+1, v0)
// 2. 避撞：v' = min(v', gap)
// 3. 随机慢化：以概率p减1（静止起步使用pSlowStart）
// 说明：速度变化以一个元胞为单位，只有alphaV0（取整后的期望速度）起作用，alphaT与alphaA不起作用
type NSM struct {
	common
	pSlowdown  float64
	pSlowStart float64
	rng        *randengine.Engine
}

func newNSM(p config.NSM, rng *randengine.Engine) *NSM {
	if p.PSlowStart == 0 {
		p.PSlowStart = p.PSlowdown
	}
	m := &NSM{
		common:     common{name: entity.ModelNSM, v0: math.Round(p.V0), b: 1, ca: true},
		pSlowdown:  p.PSlowdown,
		pSlowStart: p.PSlowStart,
		rng:        rng,
	}
	m.k = m
	return m
}

func (m *NSM) acc(s, v, _, _, _, alphaV0, _ float64, stochastic bool) float64 {
	vNew := math.Min(v+1, math.Round(m.v0*alphaV0))
	vNew = math.Min(vNew, math.Floor(math.Max(s, 0)))
	if stochastic && m.rng != nil {
		p := m.pSlowdown
		if v < 1 {
			p = m.pSlowStart
		}
		if m.rng.PTrue(p) {
			vNew = math.Max(vNew-1, 0)
		}
	}
	return caAcc(vNew, v)
}
