package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Service 时钟查询服务
type Service struct {
	clockv1connect.UnimplementedClockServiceHandler

	clock *Clock
}

func NewService(c *Clock) *Service {
	return &Service{clock: c}
}

// Register 将ClockService注册到sidecar
func (s *Service) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		clockv1connect.ClockServiceName,
		func(opts ...connect.HandlerOption) (string, http.Handler) {
			return clockv1connect.NewClockServiceHandler(s, opts...)
		},
	)
}

// Now 当前仿真时间
// 说明：sidecar在两步之间调用，读到的是路段完成Advance后的时间
func (s *Service) Now(
	ctx context.Context, in *connect.Request[clockv1.NowRequest],
) (*connect.Response[clockv1.NowResponse], error) {
	return connect.NewResponse(&clockv1.NowResponse{T: s.clock.T}), nil
}
