package segment

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/vehicle"
)

// Statistics 全局统计
type Statistics struct {
	NumCompletedTrips int32   // 驶出路段的车辆数
	TravelTime        float64 // 累计行驶时间（秒），包括仍在路段上的车辆
	TravelDistance    float64 // 累计行驶距离（米），包括仍在路段上的车辆
}

// Statistics 获取全局统计
// 说明：已驶出车辆的累计值加上当前路段上车辆的行驶时间与距离，固定障碍物不计入
func (s *Segment) Statistics() Statistics {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	running := lo.Filter(s.vehicles.Data(), func(v *vehicle.Vehicle, _ int) bool {
		return v.Type() != entity.VehicleTypeObstacle
	})
	res := s.stats
	res.TravelTime += lo.SumBy(running, func(v *vehicle.Vehicle) float64 { return v.TotalTravelTime() })
	res.TravelDistance += lo.SumBy(running, func(v *vehicle.Vehicle) float64 { return v.TotalTraveledDistance() })
	return res
}
