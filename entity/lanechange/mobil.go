// MOBIL变道决策模型
package lanechange

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// 欧洲规则默认临界速度（米/秒），低于该速度允许从右侧超车
const defaultCritSpeedEur = 60 / 3.6

// Model MOBIL变道模型
// 功能：综合本车收益与新旧后车的加速度变化，决定是否向左/右侧车道变道
// 说明：参数不可变，同一车型的车辆可以共享
type Model struct {
	politeness       float64 // 礼让系数p
	threshold        float64 // 变道阈值
	biasRight        float64 // 靠右行驶偏置（右侧为正）
	safeDeceleration float64 // 新后车允许的最大减速度（正数）
	minGap           float64 // 变道后与新前后车的最小净间距
	european         bool    // 是否采用欧洲规则
	critSpeedEur     float64 // 欧洲规则临界速度
}

// New 创建MOBIL变道模型，cfg为nil时返回nil（车辆不变道）
func New(cfg *config.LaneChange) *Model {
	if cfg == nil {
		return nil
	}
	if cfg.SafeDeceleration <= 0 {
		log.Panicf("lane change: safe_deceleration must be positive, got %v", cfg.SafeDeceleration)
	}
	m := &Model{
		politeness:       cfg.Politeness,
		threshold:        cfg.Threshold,
		biasRight:        cfg.BiasRight,
		safeDeceleration: cfg.SafeDeceleration,
		minGap:           math.Max(cfg.MinGap, 0),
		european:         cfg.EuropeanRules,
		critSpeedEur:     cfg.CritSpeedEur,
	}
	if m.european && m.critSpeedEur <= 0 {
		m.critSpeedEur = defaultCritSpeedEur
	}
	return m
}

// EuropeanRules 是否采用欧洲规则（禁止从右侧超车）
func (m *Model) EuropeanRules() bool {
	return m.european
}

// CritSpeedEur 欧洲规则临界速度
func (m *Model) CritSpeedEur() float64 {
	return m.critSpeedEur
}

func (m *Model) String() string {
	return fmt.Sprintf("MOBIL{p=%v, threshold=%v, bias=%v, bSafe=%v, eur=%v}",
		m.politeness, m.threshold, m.biasRight, m.safeDeceleration, m.european)
}

// Side 相邻车道的局部环境
type Side struct {
	Available bool            // 相邻车道是否存在
	Front     entity.IVehicle // 相邻车道中的前车
	Back      entity.IVehicle // 相邻车道中的后车
}

// Neighborhood 变道决策所需的周边车辆
// 说明：Sides按entity.LEFT/entity.RIGHT索引
type Neighborhood struct {
	Front entity.IVehicle // 本车道前车
	Back  entity.IVehicle // 本车道后车
	Sides [2]Side
}

// Decision 变道决策结果
type Decision struct {
	Change bool    // 是否变道
	Side   int     // 变道方向
	Margin float64 // 激励值减去阈值后的余量
	Acc    float64 // 变道后本车在目标车道的加速度
}

func (d Decision) String() string {
	if !d.Change {
		return "Decision{stay}"
	}
	return fmt.Sprintf("Decision{side=%d, margin=%.3f, acc=%.3f}", d.Side, d.Margin, d.Acc)
}

// Decide 变道决策
// 功能：分别评估向左、向右变道的安全性与激励，选择余量最大的一侧
// 参数：me-本车，nb-周边车辆，alphaT/alphaV0/alphaA-本车的驾驶员可变性系数
// 返回：变道决策
// 算法说明：
// 1. 安全条件：me~与nf、nb与me~的净间距不小于minGap，nb变道后的加速度不小于-safeDeceleration
// 2. 欧洲规则：向左变道时，若nb比本车快且需要的减速度超过safeDeceleration/2，视为不安全
// 3. 激励：Δ = (ã_me - a_me) + p·((ã_nb - a_nb) + (ã_ob - a_ob)) - threshold ∓ biasRight
// 4. Δ > 0时变道，两侧均满足时取Δ较大者，相等时向左
// 说明：调用方保证本车处于稳定状态且所在路段至少有两条车道；
// 所有加速度都是假设性的，不改变任何车辆模型的随机状态
func (m *Model) Decide(me entity.IVehicle, nb *Neighborhood, alphaT, alphaV0, alphaA float64) (d Decision) {
	model := me.LongitudinalModel()
	if model == nil || me.Type() == entity.VehicleTypeObstacle {
		return
	}
	// -----------------------
	//  [nb]     [me~]    [nf]   目标车道，me~为变道后的本车
	// -----------------------
	//  [ob]     [me]     [of]   本车道
	// -----------------------
	// 本车道中本车的加速度
	var accMe float64
	if m.european {
		accMe = model.CalcAccEurHypothetical(m.critSpeedEur, me, nb.Front, nb.Sides[entity.LEFT].Front, alphaT, alphaV0, alphaA)
	} else {
		accMe = model.CalcAccHypothetical(me, nb.Front, alphaT, alphaV0, alphaA)
	}
	// 旧后车：本车离开后跟随本车的前车
	oldBackGain := gain(nb.Back, nb.Front, me)

	best := math.Inf(-1)
	for _, side := range [2]int{entity.LEFT, entity.RIGHT} {
		s := nb.Sides[side]
		if !s.Available {
			continue
		}
		if s.Front != nil && entity.NetDistance(me, s.Front) < m.minGap {
			continue
		}
		if s.Back != nil && entity.NetDistance(s.Back, me) < m.minGap {
			continue
		}
		// 新后车：变道后跟随本车
		newBackGain := 0.
		if s.Back != nil {
			if backModel := s.Back.LongitudinalModel(); backModel != nil {
				accNewBack := backModel.CalcAccHypothetical(s.Back, me, 1, 1, 1)
				if accNewBack < -m.safeDeceleration {
					continue
				}
				if m.european && side == entity.LEFT &&
					s.Back.V() > me.V() && accNewBack < -0.5*m.safeDeceleration {
					continue
				}
				newBackGain = accNewBack - backModel.CalcAccHypothetical(s.Back, s.Front, 1, 1, 1)
			}
		}
		// 变道后本车的加速度，欧洲规则下向右变道时原车道成为左侧车道
		var accNew float64
		if m.european && side == entity.RIGHT {
			accNew = model.CalcAccEurHypothetical(m.critSpeedEur, me, s.Front, nb.Front, alphaT, alphaV0, alphaA)
		} else {
			accNew = model.CalcAccHypothetical(me, s.Front, alphaT, alphaV0, alphaA)
		}
		margin := accNew - accMe + m.politeness*(newBackGain+oldBackGain) - m.threshold
		if side == entity.LEFT {
			margin -= m.biasRight
		} else {
			margin += m.biasRight
		}
		// 严格大于保证相等时保留先评估的左侧
		if margin > 0 && margin > best {
			best = margin
			d = Decision{Change: true, Side: side, Margin: margin, Acc: accNew}
		}
	}
	return
}

// gain 计算back的前车由oldFront变为newFront时back的加速度变化
func gain(back, newFront, oldFront entity.IVehicle) float64 {
	if back == nil {
		return 0
	}
	model := back.LongitudinalModel()
	if model == nil {
		return 0
	}
	return model.CalcAccHypothetical(back, newFront, 1, 1, 1) - model.CalcAccHypothetical(back, oldFront, 1, 1, 1)
}
