package trafficlight

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
)

const (
	// 视距与车速的比例（秒），车速较高时看得更远
	viewTimeHorizon = 12.
	// 默认最小视距（米）
	DefaultViewDistance = 50.
	// 黄灯时所需减速度超过舒适减速度的该倍数时直接通过
	dilemmaFactor = 2.
)

// Approaching 车辆接近信号灯时的纵向决策
// 功能：把停车线视为静止障碍物，计算停车所需加速度
// 说明：每辆车持有一个实例，每步在信号灯更新后刷新
type Approaching struct {
	considered bool
	acc        float64 // 停车所需加速度
	distance   float64 // 到停车线的距离
	lightID    int32
	minView    float64
}

// NewApproaching 创建接近决策，minView为最小视距（非正数时取默认值）
func NewApproaching(minView float64) *Approaching {
	if minView <= 0 {
		minView = DefaultViewDistance
	}
	return &Approaching{minView: minView, acc: math.Inf(1)}
}

// Update 刷新接近决策
// 参数：me-本车，light-下游最近的信号灯（可为nil），model-本车跟驰模型
// 算法说明：
// 1. 距离d = 停车线位置 - 车头位置，已通过或超出视距时不考虑
// 2. 绿灯不考虑
// 3. 目标加速度 = model.CalcAccSimple(d, v, v)，仅在为负时考虑
// 4. 绿转红时若v²/(2d)超过舒适减速度的2倍，无法舒适停车，直接通过
func (a *Approaching) Update(me entity.IVehicle, light *Light, model entity.ILongitudinalModel) {
	a.Reset()
	if light == nil || model == nil {
		return
	}
	a.lightID = light.ID()
	a.distance = light.Position() - me.FrontPosition()
	v := me.V()
	if a.distance <= 0 || a.distance > math.Max(v*viewTimeHorizon, a.minView) {
		return
	}
	if light.IsGreen() {
		return
	}
	target := model.CalcAccSimple(a.distance, v, v)
	if target >= 0 {
		return
	}
	if light.IsGreenRed() && v*v/(2*a.distance) > dilemmaFactor*model.ComfortDeceleration() {
		return
	}
	a.considered = true
	a.acc = target
}

// Reset 清除决策
func (a *Approaching) Reset() {
	a.considered = false
	a.acc = math.Inf(1)
	a.distance = mathutil.INF
	a.lightID = 0
}

// Considered 是否需要为信号灯减速
func (a *Approaching) Considered() bool {
	return a.considered
}

// Acc 为信号灯停车所需的加速度，未考虑时为+Inf
func (a *Approaching) Acc() float64 {
	return a.acc
}

// Distance 到停车线的距离
func (a *Approaching) Distance() float64 {
	return a.distance
}

// LightID 最近一次评估的信号灯ID
func (a *Approaching) LightID() int32 {
	return a.lightID
}

// Apply 将信号灯约束叠加到模型加速度上
func (a *Approaching) Apply(acc float64) float64 {
	if !a.considered {
		return acc
	}
	return math.Min(acc, a.acc)
}

func (a *Approaching) String() string {
	if !a.considered {
		return "Approaching{}"
	}
	return fmt.Sprintf("Approaching{light=%d, d=%.2f, acc=%.3f}", a.lightID, a.distance, a.acc)
}
