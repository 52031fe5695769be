package longitudinal

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// Newell Newell简化跟驰模型，vNew = clamp((s-s0)/T, 0, v0)
// 说明：
// 1. 与Newell运动学积分配合使用，步长等于T时车辆位置严格按vNew推进
// 2. alphaT只缩放间距项中的车头时距，速度调整时间仍为T；模型没有加速度参数，alphaA不起作用
type Newell struct {
	common
	t float64
}

func newNewell(p config.Newell) *Newell {
	m := &Newell{
		common: common{name: entity.ModelNewell, v0: p.V0, s0: p.S0},
		t:      math.Max(p.T, smallValue),
	}
	m.b = m.v0 / m.t
	m.k = m
	return m
}

// EquilibriumSpeed 平衡态速度
func (m *Newell) EquilibriumSpeed(s float64) float64 {
	return lo.Clamp((s-m.s0)/m.t, 0, m.v0)
}

func (m *Newell) acc(s, v, _, _, alphaT, alphaV0, _ float64, _ bool) float64 {
	vNew := lo.Clamp((s-m.s0)/math.Max(m.t*alphaT, smallValue), 0, m.v0*alphaV0)
	return math.Max((vNew-v)/m.t, -maxModelDeceleration)
}
