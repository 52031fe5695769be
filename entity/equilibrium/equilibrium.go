// 平衡态（基本图）计算：由跟驰模型推导密度-平衡速度关系
package equilibrium

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
)

const (
	// 密度采样点数
	NumSamples = 51
	// 二分法迭代次数
	bisectionIterations = 60
)

// Properties 平衡态属性表
// 功能：在[0, ρmax]上等距采样密度，存储对应的平衡速度，并给出最大流量及其对应密度
// 说明：构造后只读，可在多辆车之间共享
type Properties struct {
	model   entity.ModelName
	length  float64
	rhoMax  float64
	qMax    float64
	rhoQMax float64
	vEqTab  []float64
}

// steadyState 具有闭式平衡速度的模型
type steadyState interface {
	EquilibriumSpeed(s float64) float64
}

// Build 构造平衡态属性表
// 功能：对每个采样密度求解模型的平衡速度
// 参数：length-车辆长度（米），model-跟驰模型
// 返回：平衡态属性表
// 算法说明：
// 1. ρmax = 1/length，ρ_i = ρmax·i/(NumSamples-1)
// 2. 净间距s = 1/ρ - 1/ρmax，ρ=0时为+Inf
// 3. NEWELL使用闭式解，NSM/KKW取min(v0, ⌊s⌋)，其余模型二分求解CalcAccSimple(s, v, 0) = 0
// 4. 从低密度端扫描流量q=ρ·v，在第一个局部极大值处停止
// 说明：HDM没有确定的平衡态，与未知模型一样视为致命配置错误
func Build(length float64, model entity.ILongitudinalModel) *Properties {
	if length <= 0 {
		log.Panicf("invalid vehicle length %v for equilibrium of %s", length, model.ModelName())
	}
	p := &Properties{
		model:  model.ModelName(),
		length: length,
		rhoMax: 1 / length,
		vEqTab: make([]float64, NumSamples),
	}
	solve := solver(model)
	for i := range p.vEqTab {
		p.vEqTab[i] = solve(p.NetDistance(p.Rho(i)))
	}
	p.calcRhoQMax()
	log.Debugf("equilibrium of %s (length %v): qMax=%.4f/s rhoQMax=%.2f/km",
		p.model, length, p.qMax, p.rhoQMax*1000)
	return p
}

// solver 根据模型选择平衡速度求解方法
func solver(model entity.ILongitudinalModel) func(s float64) float64 {
	v0 := model.DesiredSpeed()
	switch model.ModelName() {
	case entity.ModelNewell:
		m, ok := model.(steadyState)
		if !ok {
			log.Panicf("model %s has no closed-form equilibrium", model.ModelName())
		}
		return m.EquilibriumSpeed
	case entity.ModelNSM, entity.ModelKKW:
		return func(s float64) float64 {
			return math.Min(v0, math.Floor(math.Max(s, 0)))
		}
	case entity.ModelIDM, entity.ModelACC, entity.ModelGipps, entity.ModelKrauss, entity.ModelOVMFVDM:
		return func(s float64) float64 {
			return bisect(model, s, v0)
		}
	}
	log.Panicf("equilibrium properties are not available for model %s", model.ModelName())
	return nil
}

// bisect 在[0, v0]上二分求解CalcAccSimple(s, v, 0) = 0
// 说明：加速度关于速度单调不增；两端同号时取对应端点
func bisect(model entity.ILongitudinalModel, s, v0 float64) float64 {
	if math.IsInf(s, 1) {
		return v0
	}
	if model.CalcAccSimple(s, 0, 0) <= 0 {
		return 0
	}
	if model.CalcAccSimple(s, v0, 0) >= 0 {
		return v0
	}
	low, high := 0., v0
	for range bisectionIterations {
		mid := 0.5 * (low + high)
		if model.CalcAccSimple(s, mid, 0) > 0 {
			low = mid
		} else {
			high = mid
		}
	}
	return 0.5 * (low + high)
}

// calcRhoQMax 从低密度端扫描，在第一个局部流量极大值处停止
func (p *Properties) calcRhoQMax() {
	p.qMax = -1
	i := 0
	for ; i < len(p.vEqTab); i++ {
		q := p.Rho(i) * p.vEqTab[i]
		if q <= p.qMax {
			break
		}
		p.qMax = q
	}
	p.rhoQMax = p.Rho(i - 1)
}

// Model 构造属性表所用的模型名称
func (p *Properties) Model() entity.ModelName {
	return p.model
}

// RhoMax 最大密度（辆/米）
func (p *Properties) RhoMax() float64 {
	return p.rhoMax
}

// QMax 最大流量（辆/秒）
func (p *Properties) QMax() float64 {
	return p.qMax
}

// RhoQMax 最大流量对应的密度（辆/米）
func (p *Properties) RhoQMax() float64 {
	return p.rhoQMax
}

// NetDistance 密度对应的平衡净间距，ρ=0时为+Inf
func (p *Properties) NetDistance(rho float64) float64 {
	if rho <= 0 {
		return math.Inf(1)
	}
	return math.Max(1/rho-1/p.rhoMax, 0)
}

// VEq 查询密度对应的平衡速度
// 说明：在采样表上线性插值，输入密度截断到[0, ρmax]
func (p *Properties) VEq(rho float64) float64 {
	rho = lo.Clamp(rho, 0, p.rhoMax)
	x := rho / p.rhoMax * float64(len(p.vEqTab)-1)
	i := int(math.Floor(x))
	if i >= len(p.vEqTab)-1 {
		return p.vEqTab[len(p.vEqTab)-1]
	}
	frac := x - float64(i)
	return p.vEqTab[i]*(1-frac) + p.vEqTab[i+1]*frac
}

// RhoFree 自由流分支上流量为q时的密度
// 说明：从低密度端沿采样表线性插值；q不小于最大流量时返回RhoQMax
func (p *Properties) RhoFree(q float64) float64 {
	if q <= 0 {
		return 0
	}
	if q >= p.qMax {
		return p.rhoQMax
	}
	qPrev, rhoPrev := 0., 0.
	for i := 1; i < len(p.vEqTab); i++ {
		rho := p.Rho(i)
		qi := rho * p.vEqTab[i]
		if qi >= q {
			return rhoPrev + (rho-rhoPrev)*(q-qPrev)/(qi-qPrev)
		}
		qPrev, rhoPrev = qi, rho
	}
	return p.rhoQMax
}

func (p *Properties) Len() int {
	return len(p.vEqTab)
}

// Rho 第i个采样点的密度
func (p *Properties) Rho(i int) float64 {
	return p.rhoMax * float64(i) / float64(len(p.vEqTab)-1)
}

// VEqAt 第i个采样点的平衡速度
func (p *Properties) VEqAt(i int) float64 {
	return p.vEqTab[i]
}
