package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// HDM 人类驾驶员模型
// 功能：在IDM基础上加入驾驶员对间距与接近速度的估计误差
// 算法说明：
// 1. 两个相关时间为tau的Ornstein-Uhlenbeck过程wGap、wDv，每次随机调用推进一步dt
// 2. 估计间距：s·exp(varGap·wGap)，估计接近速度：Δv + relErr·v·wDv
// 3. 将估计值代入IDM
// 说明：模型带有内部状态，每辆车必须持有独立实例；不存在确定的平衡态
type HDM struct {
	common
	idm       *IDM
	tau       float64
	varGap    float64
	relErr    float64
	dt        float64
	rng       *randengine.Engine
	wGap, wDv float64
}

func newHDM(p config.HDM, dt float64, rng *randengine.Engine) *HDM {
	if p.DT > 0 {
		dt = p.DT
	}
	m := &HDM{
		idm:    newIDM(p.IDM),
		tau:    math.Max(p.TauError, smallValue),
		varGap: p.VarGap,
		relErr: p.RelErrorSpeed,
		dt:     dt,
		rng:    rng,
	}
	m.common = m.idm.common
	m.name = entity.ModelHDM
	m.k = m
	return m
}

// advanceErrors 推进估计误差过程
func (m *HDM) advanceErrors() {
	m.wGap = m.rng.OU(m.wGap, m.dt, m.tau)
	m.wDv = m.rng.OU(m.wDv, m.dt, m.tau)
}

func (m *HDM) acc(s, v, dv, aLead, alphaT, alphaV0, alphaA float64, stochastic bool) float64 {
	if stochastic && m.rng != nil && m.dt > 0 {
		m.advanceErrors()
	}
	if !math.IsInf(s, 1) && s > 0 {
		s *= math.Exp(m.varGap * m.wGap)
		dv += m.relErr * v * m.wDv
	}
	return m.idm.acc(s, v, dv, aLead, alphaT, alphaV0, alphaA, false)
}
