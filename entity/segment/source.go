package segment

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/longitudinal"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/vehicle"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// Source 上游入流边界
// 功能：按给定流量在车道起点插入车辆
// 算法说明：
// 1. 每步累计 nIn += flow·dt，nIn不小于1时按车型比例抽取下一辆车的车型（抽取后保留到插入为止）
// 2. 由平衡态自由流分支求出流量对应的密度rho，要求上游净间距不小于平衡态净间距s_e(rho)
// 3. 插入位置为车头位于车长处，初速度取min(最后一辆车速度, v_e(rho))，车道为空时取v_e(rho)
// 说明：间距不足时本步不插入，累计量保留，下一步继续尝试
type Source struct {
	lane    int
	flow    float64 // 辆/秒
	labels  []string
	weights []float64
	factory *vehicle.Factory
	models  map[string]entity.ILongitudinalModel // 各车型的确定性模型，只用于查询参数
	rng     *randengine.Engine

	nIn  float64
	next string // 已抽取、等待插入的车型
}

// newSources 根据入流配置为每个车道创建入流
// 参数：cfgs-入流配置，lanes-车道数，factory-车辆工厂，seed-会话种子
func newSources(cfgs []config.Inflow, lanes int, factory *vehicle.Factory, seed uint64) ([]*Source, error) {
	var sources []*Source
	for _, cfg := range cfgs {
		if len(cfg.Types) == 0 {
			return nil, fmt.Errorf("inflow on lane %d has no vehicle types", cfg.Lane)
		}
		flow := cfg.Flow
		if cfg.UseMaxFlow {
			flow = factory.Equilibrium(cfg.Types[0].Label).QMax()
		}
		if flow < 0 {
			return nil, fmt.Errorf("inflow on lane %d: negative flow %v", cfg.Lane, flow)
		}
		models := make(map[string]entity.ILongitudinalModel, len(cfg.Types))
		for _, tf := range cfg.Types {
			t, ok := factory.Type(tf.Label)
			if !ok {
				return nil, fmt.Errorf("inflow references unknown vehicle type %s", tf.Label)
			}
			models[tf.Label] = longitudinal.New(t.LongitudinalModel, 0, nil)
		}
		lanesOf := []int{cfg.Lane}
		if cfg.Lane < 0 {
			lanesOf = lo.Range(lanes)
		}
		for _, lane := range lanesOf {
			if lane >= lanes {
				return nil, fmt.Errorf("inflow lane %d out of range [0, %d)", lane, lanes)
			}
			sources = append(sources, &Source{
				lane: lane,
				flow: flow,
				labels: lo.Map(cfg.Types, func(t config.TypeFraction, _ int) string {
					return t.Label
				}),
				weights: lo.Map(cfg.Types, func(t config.TypeFraction, _ int) float64 {
					return t.Fraction
				}),
				factory: factory,
				models:  models,
				// 入流使用负ID派生，与车辆的随机数引擎互不重叠
				rng: randengine.Derive(seed, -int32(len(sources)+1)),
			})
		}
	}
	return sources, nil
}

func (s *Source) Lane() int {
	return s.lane
}

// Flow 每车道流量（辆/秒）
func (s *Source) Flow() float64 {
	return s.flow
}

// Pending 已累计但尚未插入的车辆数
func (s *Source) Pending() float64 {
	return s.nIn
}

// generate 推进入流累计量并在条件满足时创建车辆
// 返回：新车辆，不需要或不能插入时返回nil
func (s *Source) generate(seg *Segment, dt float64) (*vehicle.Vehicle, error) {
	s.nIn += s.flow * dt
	if s.nIn < 1 {
		return nil, nil
	}
	if s.next == "" {
		s.next = s.labels[s.rng.DiscreteDistribution(s.weights)]
	}
	t, ok := s.factory.Type(s.next)
	if !ok {
		return nil, fmt.Errorf("unknown vehicle type %q", s.next)
	}
	model := s.models[s.next]
	x := t.Length
	if model.IsCA() {
		x = math.Round(x)
	}
	gap := mathutil.INF
	var lastSpeed float64
	last := seg.lanes[s.lane].LastVehicle()
	if last != nil {
		gap = last.RearS() - x
		lastSpeed = last.V()
	}
	eq, ok := s.factory.LookupEquilibrium(s.next)
	var speed float64
	if ok {
		rho := eq.RhoFree(s.flow)
		if gap < eq.NetDistance(rho) {
			return nil, nil
		}
		speed = eq.VEq(rho)
	} else {
		// 没有平衡态的车型只要求不与上游车辆重叠，以期望速度驶入
		if gap < 0 {
			return nil, nil
		}
		speed = model.DesiredSpeed()
	}
	if last != nil {
		speed = math.Min(speed, lastSpeed)
	}
	v, err := s.factory.New(s.next, s.lane, x, speed)
	if err != nil {
		return nil, err
	}
	s.nIn--
	s.next = ""
	return v, nil
}
