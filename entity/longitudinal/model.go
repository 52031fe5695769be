// 跟驰模型族：根据本车与前车状态计算纵向加速度
package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
)

const (
	// 模型内部允许的最大减速度（米/秒²），用于间距非正等退化情况
	maxModelDeceleration = 20.
	// 避免除零的最小速度/参数值
	smallValue = 1e-6
)

// kernel 各模型的加速度公式
// 参数：s-净间距（无前车时为+Inf），v-本车速度，dv-接近速度（本车速度-前车速度），
// aLead-前车上一步加速度，alphaT/alphaV0/alphaA-驾驶员可变性系数，
// stochastic-是否启用模型自身的随机项（确定性查询时为false）
type kernel interface {
	acc(s, v, dv, aLead, alphaT, alphaV0, alphaA float64, stochastic bool) float64
}

// common 所有模型共享的参数与接口实现
type common struct {
	name entity.ModelName
	v0   float64 // 期望速度
	s0   float64 // 最小间距
	b    float64 // 舒适减速度
	ca   bool    // 是否为元胞自动机
	k    kernel
}

func (c *common) ModelName() entity.ModelName {
	return c.name
}

func (c *common) IsCA() bool {
	return c.ca
}

func (c *common) DesiredSpeed() float64 {
	return c.v0
}

func (c *common) MinGap() float64 {
	return c.s0
}

func (c *common) ComfortDeceleration() float64 {
	return c.b
}

// CalcAcc 计算跟随front的加速度
// 说明：front为nil时视为自由流，间距取+Inf，忽略交互项；
// 每辆车每步只调用一次，随机模型在此推进随机状态（抖动、估计误差）
func (c *common) CalcAcc(me, front entity.IVehicle, alphaT, alphaV0, alphaA float64) float64 {
	return c.calcAcc(me, front, alphaT, alphaV0, alphaA, true)
}

// CalcAccHypothetical 假设性加速度，不推进随机状态
func (c *common) CalcAccHypothetical(me, front entity.IVehicle, alphaT, alphaV0, alphaA float64) float64 {
	return c.calcAcc(me, front, alphaT, alphaV0, alphaA, false)
}

func (c *common) calcAcc(me, front entity.IVehicle, alphaT, alphaV0, alphaA float64, stochastic bool) float64 {
	if front == nil {
		return c.k.acc(math.Inf(1), me.V(), 0, 0, alphaT, alphaV0, alphaA, stochastic)
	}
	return c.k.acc(
		entity.NetDistance(me, front), me.V(), entity.RelSpeed(me, front), front.A(),
		alphaT, alphaV0, alphaA, stochastic,
	)
}

// CalcAccEur 欧洲规则下的加速度
// 功能：速度不低于vCritEur时，若左侧车道前车比本车慢，则同时跟随左侧前车，不从右侧超车
// 说明：左侧前车与本车并排（净间距非正）时不参与计算；左侧评估不触发模型随机项
func (c *common) CalcAccEur(vCritEur float64, me, front, leftFront entity.IVehicle, alphaT, alphaV0, alphaA float64) float64 {
	return c.calcAccEur(vCritEur, me, front, leftFront, alphaT, alphaV0, alphaA, true)
}

// CalcAccEurHypothetical 欧洲规则下的假设性加速度，不推进随机状态
func (c *common) CalcAccEurHypothetical(vCritEur float64, me, front, leftFront entity.IVehicle, alphaT, alphaV0, alphaA float64) float64 {
	return c.calcAccEur(vCritEur, me, front, leftFront, alphaT, alphaV0, alphaA, false)
}

func (c *common) calcAccEur(vCritEur float64, me, front, leftFront entity.IVehicle, alphaT, alphaV0, alphaA float64, stochastic bool) float64 {
	acc := c.calcAcc(me, front, alphaT, alphaV0, alphaA, stochastic)
	if leftFront == nil || me.V() < vCritEur || leftFront.V() >= me.V() {
		return acc
	}
	s := entity.NetDistance(me, leftFront)
	if s <= 0 {
		return acc
	}
	accLeft := c.k.acc(s, me.V(), entity.RelSpeed(me, leftFront), leftFront.A(), alphaT, alphaV0, alphaA, false)
	return math.Min(acc, accLeft)
}

// CalcAccSimple 给定净间距、速度和接近速度的确定性加速度
func (c *common) CalcAccSimple(s, v, dv float64) float64 {
	return c.k.acc(s, v, dv, 0, 1, 1, 1, false)
}

// caAcc 元胞自动机模型的速度更新转换为加速度（时间步长为1）
func caAcc(vNew, v float64) float64 {
	return math.Max(vNew, 0) - v
}
