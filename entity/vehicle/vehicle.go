// 车辆运动学状态：加速度计算、积分、刹车灯与变道状态
package vehicle

import (
	"fmt"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/equilibrium"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/lanechange"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/container"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

// Vehicle 车辆实体
// 功能：保存车辆的几何属性、运动学状态、驾驶模型与变道状态
// 说明：
// 1. 位置x为车头位置，车尾位置为x-length
// 2. 加速度分两阶段生效：ComputeAcceleration写入pending，ApplyAcceleration统一提交，
// 同一步内其他车辆读到的A()始终是上一步的值
// 3. 变道中的车辆在目标车道持有主节点，在原车道持有影子节点
type Vehicle struct {
	container.IncrementalItemBase

	id       int32
	label    string
	typ      entity.VehicleType
	length   float64
	width    float64
	maxDecel float64 // 最大减速度（正数）

	model       entity.ILongitudinalModel
	lcModel     *lanechange.Model
	memory      *Memory
	noise       *Noise
	approaching *trafficlight.Approaching // 不关注信号灯时为nil
	eq          *equilibrium.Properties
	rng         *randengine.Engine

	x              float64 // 车头位置
	v              float64
	acc            float64 // 本步生效的加速度
	accOld         float64 // 上一步的加速度
	accPending     float64 // 已计算未提交的加速度
	accError       float64 // 本步的噪声
	brakeLight     bool
	brakeLightPrev bool // 本步更新前的刹车灯状态，变道改写加速度后据此重新判断

	lane     int
	laneOld  int
	lcStatus entity.LaneChangeStatus
	lcTimer  float64

	node   *entity.VehicleNode // 所在车道链表中的节点
	shadow *entity.VehicleNode // 变道中在原车道的影子节点

	entryTime  float64
	travelTime float64
	traveled   float64
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) Label() string {
	return v.label
}

func (v *Vehicle) Type() entity.VehicleType {
	return v.typ
}

func (v *Vehicle) V() float64 {
	return v.v
}

// A 本步已生效的加速度
func (v *Vehicle) A() float64 {
	return v.acc
}

// AccOld 上一步的加速度
func (v *Vehicle) AccOld() float64 {
	return v.accOld
}

// AccError 本步叠加的加速度噪声
func (v *Vehicle) AccError() float64 {
	return v.accError
}

func (v *Vehicle) Length() float64 {
	return v.length
}

func (v *Vehicle) Width() float64 {
	return v.width
}

func (v *Vehicle) FrontPosition() float64 {
	return v.x
}

func (v *Vehicle) RearPosition() float64 {
	return v.x - v.length
}

// MidPosition 车辆中点位置
func (v *Vehicle) MidPosition() float64 {
	return v.x - v.length/2
}

func (v *Vehicle) MaxDeceleration() float64 {
	return v.maxDecel
}

func (v *Vehicle) Lane() int {
	return v.lane
}

// LaneOld 变道前所在车道，未变道时等于Lane()
func (v *Vehicle) LaneOld() int {
	return v.laneOld
}

func (v *Vehicle) LaneChangeStatus() entity.LaneChangeStatus {
	return v.lcStatus
}

// LaneChangeTimer 本次变道已经经过的时间
func (v *Vehicle) LaneChangeTimer() float64 {
	return v.lcTimer
}

// ContinuousLane 连续车道坐标，变道过程中在新旧车道之间线性插值
func (v *Vehicle) ContinuousLane() float64 {
	if v.lcStatus != entity.LaneChangeChanging {
		return float64(v.lane)
	}
	return float64(v.laneOld) + float64(v.lane-v.laneOld)*v.laneChangeRatio()
}

func (v *Vehicle) laneChangeRatio() float64 {
	return min(v.lcTimer/entity.LaneChangeDuration, 1)
}

func (v *Vehicle) LongitudinalModel() entity.ILongitudinalModel {
	return v.model
}

// LaneChangeModel 变道模型，为nil时车辆不主动变道
func (v *Vehicle) LaneChangeModel() *lanechange.Model {
	return v.lcModel
}

func (v *Vehicle) Memory() *Memory {
	return v.memory
}

// Approaching 信号灯接近决策，不关注信号灯时为nil
func (v *Vehicle) Approaching() *trafficlight.Approaching {
	return v.approaching
}

// Equilibrium 车型共享的平衡态属性表
func (v *Vehicle) Equilibrium() *equilibrium.Properties {
	return v.eq
}

func (v *Vehicle) BrakeLight() bool {
	return v.brakeLight
}

func (v *Vehicle) Node() *entity.VehicleNode {
	return v.node
}

func (v *Vehicle) SetNode(n *entity.VehicleNode) {
	v.node = n
}

func (v *Vehicle) ShadowNode() *entity.VehicleNode {
	return v.shadow
}

func (v *Vehicle) SetShadowNode(n *entity.VehicleNode) {
	v.shadow = n
}

func (v *Vehicle) EntryTime() float64 {
	return v.entryTime
}

// TotalTravelTime 累计行驶时间
func (v *Vehicle) TotalTravelTime() float64 {
	return v.travelTime
}

// TotalTraveledDistance 累计行驶距离
func (v *Vehicle) TotalTraveledDistance() float64 {
	return v.traveled
}

// SetSpeed 设置速度（入流与初始化使用）
func (v *Vehicle) SetSpeed(speed float64) {
	v.v = max(speed, 0)
}

// SetPosition 设置车头位置（入流与初始化使用）
func (v *Vehicle) SetPosition(x float64) {
	v.x = x
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{id=%d, %s, lane=%d, x=%.2f, v=%.2f, a=%.2f}", v.id, v.label, v.lane, v.x, v.v, v.acc)
}
