package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// ACC 自适应巡航模型
// 功能：IDM与恒定加速度启发式（CAH）的混合，前车加速度取其上一步已生效的值
// 算法说明：
// 1. 计算IDM加速度accIDM
// 2. 假设前车保持当前加速度，计算CAH加速度accCAH
// 3. accIDM更大时直接采用，否则按冷静系数c混合：(1-c)·accIDM + c·(accCAH + b·tanh((accIDM-accCAH)/b))
type ACC struct {
	common
	idm      *IDM
	coolness float64
}

func newACC(p config.ACC) *ACC {
	m := &ACC{idm: newIDM(p.IDM), coolness: p.Coolness}
	m.common = m.idm.common
	m.name = entity.ModelACC
	m.k = m
	return m
}

func (m *ACC) acc(s, v, dv, aLead, alphaT, alphaV0, alphaA float64, _ bool) float64 {
	accIDM := m.idm.acc(s, v, dv, aLead, alphaT, alphaV0, alphaA, false)
	if s <= 0 || math.IsInf(s, 1) {
		return accIDM
	}
	aLeadRestricted := math.Min(aLead, m.idm.a*alphaA)
	dvp := math.Max(dv, 0)
	vLead := v - dvp
	denomCAH := vLead*vLead - 2*s*aLeadRestricted
	var accCAH float64
	if vLead*dvp < -2*s*aLeadRestricted && denomCAH != 0 {
		accCAH = v * v * aLeadRestricted / denomCAH
	} else {
		accCAH = aLeadRestricted - 0.5*dvp*dvp/s
	}
	if accIDM > accCAH {
		return accIDM
	}
	mix := (1-m.coolness)*accIDM + m.coolness*(accCAH+m.b*math.Tanh((accIDM-accCAH)/m.b))
	return math.Max(mix, -maxModelDeceleration)
}
