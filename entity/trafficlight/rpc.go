package trafficlight

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
)

// LightReader 在读锁保护下访问信号灯集合
type LightReader interface {
	ReadLights(fn func(ls *Lights))
}

// Service 信号灯查询服务
// 说明：JunctionId字段解释为信号灯ID，只读，设置类接口保持未实现
type Service struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	reader LightReader
}

func NewService(reader LightReader) *Service {
	return &Service{reader: reader}
}

// Register 将信号灯服务注册到sidecar
func (s *Service) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(s, opts...)
		},
	)
}

// GetTrafficLight RPC接口：获取信号灯周期与当前状态
// 返回：信号灯周期（每个相位一个Phase）、当前相位索引和剩余时间
// 说明：信号灯不存在时返回CodeInvalidArgument
func (s *Service) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	var res *mapv2.GetTrafficLightResponse
	s.reader.ReadLights(func(ls *Lights) {
		l, ok := ls.Get(in.Msg.JunctionId)
		if !ok {
			return
		}
		res = &mapv2.GetTrafficLightResponse{
			TrafficLight:  l.ToPb(),
			PhaseIndex:    int32(l.Phase()),
			TimeRemaining: l.RemainingTime(),
		}
	})
	if res == nil {
		return nil, connect.NewError(
			connect.CodeInvalidArgument, fmt.Errorf("traffic light %d does not exist", in.Msg.JunctionId),
		)
	}
	return connect.NewResponse(res), nil
}
