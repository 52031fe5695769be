package entity

import (
	"fmt"
	"strings"

	"github.com/tsinghua-fib-lab/microtraffic-go/utils/container"
)

// 方位常量
const (
	LEFT   = 0 // 左侧（车道编号减小的方向）
	RIGHT  = 1 // 右侧（车道编号增大的方向）
	BEFORE = 0 // 后方，等价于next/behind
	AFTER  = 1 // 前方，等价于prev/ahead
)

const (
	GapInfinity        = 10000. // 无前车时使用的间距（米）
	CriticalGap        = 2.     // 小于该净间距时加速度噪声只允许为负（米）
	LaneChangeDuration = 5.     // 完成一次变道所需时间（秒）
	SpeedEpsilon       = 1e-4   // 视为静止的速度阈值（米/秒）
)

// SideToLaneOffset 将方位转换为车道编号的增量
func SideToLaneOffset(side int) int {
	if side == LEFT {
		return -1
	}
	return 1
}

// VehicleType 车辆分类
type VehicleType int32

const (
	VehicleTypeNone        VehicleType = iota // 未设置
	VehicleTypeObstacle                       // 固定障碍物
	VehicleTypeVehicle                        // 普通车辆
	VehicleTypeFloatingCar                    // 浮动车（探测车）
)

func (t VehicleType) String() string {
	switch t {
	case VehicleTypeObstacle:
		return "obstacle"
	case VehicleTypeVehicle:
		return "vehicle"
	case VehicleTypeFloatingCar:
		return "floating_car"
	default:
		return "none"
	}
}

// ParseVehicleType 解析配置中的车辆分类，空字符串视为普通车辆
func ParseVehicleType(s string) (VehicleType, error) {
	switch strings.ToLower(s) {
	case "", "vehicle":
		return VehicleTypeVehicle, nil
	case "obstacle":
		return VehicleTypeObstacle, nil
	case "floating_car":
		return VehicleTypeFloatingCar, nil
	case "none":
		return VehicleTypeNone, nil
	}
	return VehicleTypeNone, fmt.Errorf("unknown vehicle type %q", s)
}

// LaneChangeStatus 变道状态
type LaneChangeStatus int32

const (
	LaneChangeStable   LaneChangeStatus = iota // 车道内稳定行驶
	LaneChangeChanging                         // 变道中
)

// entity/vehicle/vehicle.go的依赖倒置
type IVehicle interface {
	ID() int32
	Label() string
	Type() VehicleType

	V() float64             // 速度
	A() float64             // 上一步已生效的加速度
	Length() float64        // 车长
	Width() float64         // 车宽
	FrontPosition() float64 // 车头位置
	RearPosition() float64  // 车尾位置
	Lane() int              // 所在车道
	LaneChangeStatus() LaneChangeStatus

	LongitudinalModel() ILongitudinalModel

	String() string
}

// NetDistance 计算me到前车front的净间距，front为nil时返回GapInfinity
func NetDistance(me, front IVehicle) float64 {
	if front == nil {
		return GapInfinity
	}
	return front.RearPosition() - me.FrontPosition()
}

// RelSpeed 计算me相对前车front的接近速度，front为nil时返回0
func RelSpeed(me, front IVehicle) float64 {
	if front == nil {
		return 0
	}
	return me.V() - front.V()
}

// 车辆链表支链，记录左右车道的前后车辆
type VehicleSideLink struct {
	// [LEFT/RIGHT][BEFORE/AFTER]
	Links [2][2]*container.ListNode[IVehicle, VehicleSideLink]
	// 变道中的车辆在原车道上保留的影子节点
	Shadow bool
}

func (l VehicleSideLink) String() string {
	var b strings.Builder
	for _, side := range []int{LEFT, RIGHT} {
		for _, dir := range []int{BEFORE, AFTER} {
			name := [2]string{"L", "R"}[side] + "-" + [2]string{"B", "F"}[dir]
			if n := l.Links[side][dir]; n != nil {
				fmt.Fprintf(&b, "%s: %v, ", name, n.Value.ID())
			} else {
				fmt.Fprintf(&b, "%s: nil, ", name)
			}
		}
	}
	if l.Shadow {
		b.WriteString("shadow")
	}
	return strings.TrimSuffix(b.String(), ", ")
}

// Clear 清空支链
func (l *VehicleSideLink) Clear() {
	l.Links = [2][2]*container.ListNode[IVehicle, VehicleSideLink]{}
}

type VehicleNode = container.ListNode[IVehicle, VehicleSideLink]
type VehicleList = container.List[IVehicle, VehicleSideLink]
