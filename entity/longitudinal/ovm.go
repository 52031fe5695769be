package longitudinal

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

const (
	ovmVariantTanh       = "tanh"
	ovmVariantTriangular = "triangular"
)

// OVMFVDM 优化速度模型/全速度差模型
// 功能：acc = (Vopt(s) - v)/τ - λ·Δv，λ=0时退化为OVM
// 说明：
// 1. Vopt支持tanh形式与分段线性（triangular）形式
// 2. 驾驶员可变性：按间距s/alphaT查Vopt（相当于增大车头时距），期望速度乘alphaV0，
// 弛豫时间取τ/alphaA
type OVMFVDM struct {
	common
	tau     float64
	width   float64
	beta    float64
	lambda  float64
	variant string
}

func newOVMFVDM(p config.OVMFVDM) *OVMFVDM {
	if p.Variant == "" {
		p.Variant = ovmVariantTanh
	}
	if p.Variant != ovmVariantTanh && p.Variant != ovmVariantTriangular {
		log.Panicf("%s: unknown optimal velocity function %q", entity.ModelOVMFVDM, p.Variant)
	}
	m := &OVMFVDM{
		common:  common{name: entity.ModelOVMFVDM, v0: p.V0, s0: p.S0},
		tau:     math.Max(p.Tau, smallValue),
		width:   math.Max(p.TransitionWidth, smallValue),
		beta:    p.Beta,
		lambda:  p.Lambda,
		variant: p.Variant,
	}
	// 参考减速度：以期望速度在τ内停车
	m.b = m.v0 / m.tau
	m.k = m
	return m
}

// OptimalVelocity 优化速度函数Vopt(s)
func (m *OVMFVDM) OptimalVelocity(s float64) float64 {
	if math.IsInf(s, 1) {
		return m.v0
	}
	switch m.variant {
	case ovmVariantTriangular:
		return m.v0 * lo.Clamp((s-m.s0)/m.width, 0, 1)
	default:
		tb := math.Tanh(m.beta)
		return math.Max(0, m.v0*(math.Tanh((s-m.s0)/m.width-m.beta)+tb)/(1+tb))
	}
}

func (m *OVMFVDM) acc(s, v, dv, _, alphaT, alphaV0, alphaA float64, _ bool) float64 {
	if s <= 0 {
		return -maxModelDeceleration
	}
	vOpt := alphaV0 * m.OptimalVelocity(s/math.Max(alphaT, smallValue))
	tau := m.tau / math.Max(alphaA, smallValue)
	acc := (vOpt-v)/tau - m.lambda*dv
	return math.Max(acc, -maxModelDeceleration)
}
