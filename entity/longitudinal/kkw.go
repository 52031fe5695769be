package longitudinal

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// KKW Kerner-Klenov-Wolf元胞自动机
// 算法说明（长度单位为元胞，速度单位为元胞/步）：
// 1. 同步距离k·v以外自由加速v+1，以内向前车速度靠拢v+sign(vl-v)
// 2. 受安全速度（间距）与v0限制
// 3. 随机项：以概率pb减速（静止时pb0，否则pb1），以概率pa加速（v<vp时pa1，否则pa2）
// 说明：速度变化以一个元胞为单位，只有alphaV0（取整后的期望速度）起作用，alphaT与alphaA不起作用
type KKW struct {
	common
	kSync    float64
	pb0, pb1 float64
	pa1, pa2 float64
	vp       float64
	rng      *randengine.Engine
}

func newKKW(p config.KKW, rng *randengine.Engine) *KKW {
	m := &KKW{
		common: common{name: entity.ModelKKW, v0: math.Round(p.V0), b: 1, ca: true},
		kSync:  p.K,
		pb0:    p.PB0,
		pb1:    p.PB1,
		pa1:    p.PA1,
		pa2:    p.PA2,
		vp:     p.VP,
		rng:    rng,
	}
	m.k = m
	return m
}

func (m *KKW) acc(s, v, dv, _, _, alphaV0, _ float64, stochastic bool) float64 {
	v0 := math.Round(m.v0 * alphaV0)
	vSafe := math.Floor(math.Max(s, 0))
	vLead := v - dv
	var vc float64
	if s > m.kSync*v {
		vc = v + 1
	} else {
		switch {
		case vLead > v:
			vc = v + 1
		case vLead < v:
			vc = v - 1
		default:
			vc = v
		}
	}
	vTilde := math.Max(0, math.Min(math.Min(vc, vSafe), v0))
	vNew := vTilde
	if stochastic && m.rng != nil {
		pb := m.pb1
		if v < 1 {
			pb = m.pb0
		}
		pa := m.pa1
		if v >= m.vp {
			pa = m.pa2
		}
		r := m.rng.Float64()
		if r < pb {
			vNew = math.Max(vTilde-1, 0)
		} else if r < pb+pa {
			vNew = math.Min(math.Min(vTilde+1, vSafe), v0)
		}
	}
	return caAcc(vNew, v)
}
