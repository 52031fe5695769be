package segment

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"git.fiblab.net/sim/protos/v2/go/city/person/v2/personv2connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Service 路段统计服务，复用人员服务的全局统计接口
type Service struct {
	personv2connect.UnimplementedPersonServiceHandler

	seg *Segment
}

func NewService(seg *Segment) *Service {
	return &Service{seg: seg}
}

// Register 将统计服务注册到sidecar
func (s *Service) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		personv2connect.PersonServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return personv2connect.NewPersonServiceHandler(s, opts...)
		},
	)
}

// GetGlobalStatistics 获取全局统计信息
// 返回：驶出路段的车辆数、累计行驶时间与累计行驶距离
func (s *Service) GetGlobalStatistics(
	ctx context.Context, in *connect.Request[personv2.GetGlobalStatisticsRequest],
) (*connect.Response[personv2.GetGlobalStatisticsResponse], error) {
	stats := s.seg.Statistics()
	return connect.NewResponse(&personv2.GetGlobalStatisticsResponse{
		NumCompletedTrips:          stats.NumCompletedTrips,
		RunningTotalTravelTime:     stats.TravelTime,
		RunningTotalTravelDistance: stats.TravelDistance,
	}), nil
}
