package vehicle

import (
	"fmt"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/equilibrium"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/lanechange"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/longitudinal"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

const defaultWidth = 2.

// Factory 车辆工厂
// 功能：按车型标签创建车辆，组装跟驰模型、变道模型、记忆与噪声效应
// 说明：
// 1. 跟驰模型可能带有内部状态（HDM、随机模型），每辆车持有独立实例
// 2. 变道模型不可变，同一车型共享
// 3. 平衡态属性表按车型标签构造一次并共享，HDM没有平衡态，只在显式查询时报错
// 4. 每辆车的随机数引擎由(会话种子, 车辆ID)派生，与创建顺序无关
type Factory struct {
	ctx  entity.ITaskContext
	seed uint64

	lcModels map[string]*lanechange.Model
	eq       map[string]*equilibrium.Properties // 构造后只读
}

// NewFactory 创建车辆工厂
// 说明：构造时校验每个车型的模型配置，非法配置直接panic
func NewFactory(ctx entity.ITaskContext) *Factory {
	rc := ctx.RuntimeConfig()
	f := &Factory{
		ctx:      ctx,
		seed:     rc.C.Seed,
		lcModels: make(map[string]*lanechange.Model, len(rc.Types)),
		eq:       make(map[string]*equilibrium.Properties, len(rc.Types)),
	}
	for label, t := range rc.Types {
		if _, err := entity.ParseVehicleType(t.Type); err != nil {
			log.Panicf("vehicle type %s: %v", label, err)
		}
		// 构造一次以检查配置
		m := longitudinal.New(t.LongitudinalModel, ctx.Clock().DT, nil)
		if m.IsCA() && ctx.Clock().DT != 1 {
			log.Panicf("vehicle type %s: cellular model %s requires a 1s step, got %v", label, m.ModelName(), ctx.Clock().DT)
		}
		f.lcModels[label] = lanechange.New(t.LaneChange)
		if m.ModelName() != entity.ModelHDM {
			f.eq[label] = equilibrium.Build(t.Length, m)
		}
	}
	return f
}

// New 创建车辆
// 参数：label-车型标签，lane-车道，x-车头位置，speed-初始速度
// 返回：车辆，标签不存在时返回错误
func (f *Factory) New(label string, lane int, x, speed float64) (*Vehicle, error) {
	t, ok := f.ctx.RuntimeConfig().Types[label]
	if !ok {
		return nil, fmt.Errorf("unknown vehicle type %q", label)
	}
	typ, err := entity.ParseVehicleType(t.Type)
	if err != nil {
		return nil, err
	}
	id := f.ctx.IDAllocator().Next()
	rng := randengine.Derive(f.seed, id)
	v := &Vehicle{
		id:        id,
		label:     label,
		typ:       typ,
		length:    t.Length,
		width:     t.Width,
		maxDecel:  t.MaxDeceleration,
		model:     longitudinal.New(t.LongitudinalModel, f.ctx.Clock().DT, rng),
		lcModel:   f.lcModels[label],
		memory:    NewMemory(t.Memory),
		noise:     NewNoise(t.Noise),
		rng:       rng,
		x:         x,
		v:         max(speed, 0),
		lane:      lane,
		laneOld:   lane,
		entryTime: f.ctx.Clock().T,
	}
	if v.width <= 0 {
		v.width = defaultWidth
	}
	if v.maxDecel <= 0 {
		v.maxDecel = v.model.ComfortDeceleration() * 6
	}
	if t.TrafficLightAware && typ != entity.VehicleTypeObstacle {
		v.approaching = trafficlight.NewApproaching(t.ViewDistance)
	}
	if typ == entity.VehicleTypeObstacle {
		v.v = 0
		v.lcModel = nil
	}
	v.eq = f.eq[label]
	return v, nil
}

// Equilibrium 获取车型的平衡态属性表
// 说明：模型不支持平衡态时panic（致命配置错误）
func (f *Factory) Equilibrium(label string) *equilibrium.Properties {
	if p, ok := f.eq[label]; ok {
		return p
	}
	t, ok := f.ctx.RuntimeConfig().Types[label]
	if !ok {
		log.Panicf("unknown vehicle type %q", label)
	}
	// 只有没有平衡态的模型会走到这里，Build直接报告致命错误
	return equilibrium.Build(t.Length, longitudinal.New(t.LongitudinalModel, f.ctx.Clock().DT, nil))
}

// LookupEquilibrium 获取车型的平衡态属性表，不存在时返回false
func (f *Factory) LookupEquilibrium(label string) (*equilibrium.Properties, bool) {
	p, ok := f.eq[label]
	return p, ok
}

// Type 获取车型配置
func (f *Factory) Type(label string) (config.VehicleType, bool) {
	t, ok := f.ctx.RuntimeConfig().Types[label]
	return t, ok
}
