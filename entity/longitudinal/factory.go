package longitudinal

import (
	"strings"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// 各模型的默认参数，配置中缺省参数块时使用
var (
	DefaultIDM    = config.IDM{V0: 20, T: 1.5, S0: 2, A: 1, B: 1.5, Delta: 4}
	DefaultACC    = config.ACC{IDM: DefaultIDM, Coolness: 0.99}
	DefaultGipps  = config.Gipps{V0: 20, T: 1, S0: 2, A: 1.5, B: 1}
	DefaultNewell = config.Newell{V0: 20, T: 1, S0: 2}
	DefaultKrauss = config.Krauss{V0: 20, T: 1, S0: 2, A: 1, B: 1.5, Epsilon: 0.4}
	DefaultOVM    = config.OVMFVDM{V0: 20, Tau: 0.65, S0: 2, TransitionWidth: 15, Beta: 1.5, Variant: ovmVariantTanh}
	DefaultNSM    = config.NSM{V0: 5, PSlowdown: 0.25}
	DefaultKKW    = config.KKW{V0: 5, K: 2.55, PB0: 0.425, PB1: 0.04, PA1: 0.2, PA2: 0.052, VP: 3}
	DefaultHDM    = config.HDM{IDM: DefaultIDM, TauError: 20, VarGap: 0.1, RelErrorSpeed: 0.1}
)

// New 根据配置创建跟驰模型
// 功能：按模型名称分派构造对应模型，模型名在构造时确定，调用时不再分派
// 参数：cfg-模型配置，dt-仿真步长（有状态模型使用），rng-随机数引擎（随机模型使用，可为nil）
// 返回：跟驰模型实例
// 说明：未知模型名或参数不合法属于致命配置错误，直接panic
func New(cfg config.LongitudinalModel, dt float64, rng *randengine.Engine) entity.ILongitudinalModel {
	name := entity.ModelName(strings.ToUpper(cfg.Name))
	switch name {
	case entity.ModelIDM:
		p := valueOr(cfg.IDM, DefaultIDM)
		checkPositive(name, "v0", p.V0, "a", p.A, "b", p.B)
		return newIDM(p)
	case entity.ModelACC:
		p := valueOr(cfg.ACC, DefaultACC)
		checkPositive(name, "v0", p.V0, "a", p.A, "b", p.B)
		if p.Coolness < 0 || p.Coolness > 1 {
			log.Panicf("%s: coolness must be in [0, 1], got %v", name, p.Coolness)
		}
		return newACC(p)
	case entity.ModelGipps:
		p := valueOr(cfg.Gipps, DefaultGipps)
		checkPositive(name, "v0", p.V0, "t", p.T, "a", p.A, "b", p.B)
		return newGipps(p)
	case entity.ModelNewell:
		p := valueOr(cfg.Newell, DefaultNewell)
		checkPositive(name, "v0", p.V0, "t", p.T)
		return newNewell(p)
	case entity.ModelKrauss:
		p := valueOr(cfg.Krauss, DefaultKrauss)
		checkPositive(name, "v0", p.V0, "t", p.T, "a", p.A, "b", p.B)
		return newKrauss(p, rng)
	case entity.ModelOVMFVDM:
		p := valueOr(cfg.OVMFVDM, DefaultOVM)
		checkPositive(name, "v0", p.V0, "tau", p.Tau, "transition_width", p.TransitionWidth)
		return newOVMFVDM(p)
	case entity.ModelNSM:
		p := valueOr(cfg.NSM, DefaultNSM)
		checkPositive(name, "v0", p.V0)
		return newNSM(p, rng)
	case entity.ModelKKW:
		p := valueOr(cfg.KKW, DefaultKKW)
		checkPositive(name, "v0", p.V0)
		return newKKW(p, rng)
	case entity.ModelHDM:
		p := valueOr(cfg.HDM, DefaultHDM)
		checkPositive(name, "v0", p.V0, "a", p.A, "b", p.B)
		return newHDM(p, dt, rng)
	}
	log.Panicf("unknown longitudinal model %q", cfg.Name)
	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// checkPositive 检查参数为正，kv为交替出现的参数名与参数值
func checkPositive(name entity.ModelName, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		if v, ok := kv[i+1].(float64); ok && v <= 0 {
			log.Panicf("%s: parameter %v must be positive, got %v", name, kv[i], v)
		}
	}
}
