package task

import (
	"fmt"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/microtraffic-go/clock"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/segment"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/vehicle"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

const (
	SelfName = "microtraffic" // 本程序在模拟任务集群中的名字
)

// Context 仿真会话上下文
// 功能：包含一次仿真会话的所有变量和状态，替代全局变量
// 说明：管理时钟、运行时配置、车辆ID分配、车辆工厂与路段，并向sidecar注册RPC服务
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理分布式模式下相关调用，为nil时不提供RPC服务
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	serving        bool

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 车辆ID分配器，每次Init重置
	ids *entity.IDAllocator

	factory *vehicle.Factory
	segment *segment.Segment
}

// NewContext 创建仿真会话上下文
// 参数：
//   - job: 任务名称
//   - c: 配置对象
//   - sidecar: sidecar实例，可为nil
//   - startSidecarServe: 是否启动sidecar服务
//   - record: 每步记录回调，可为nil
//
// 返回：初始化完成的Context实例，配置不合法时返回错误
// 算法说明：
// 1. 校验配置并建立运行时配置
// 2. 创建时钟、车辆工厂与路段（车道、信号灯、入流）
// 3. 注册RPC服务到sidecar，按需启动sidecar服务
func NewContext(
	job string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
	record trafficlight.RecordFunc,
) (*Context, error) {
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  rc,
		ids:            entity.NewIDAllocator(),
	}
	ctx.clock = clock.New(rc.C.Step)
	ctx.factory = vehicle.NewFactory(ctx)
	if ctx.segment, err = segment.New(ctx, ctx.factory, record); err != nil {
		return nil, err
	}

	if sidecar != nil {
		clock.NewService(ctx.clock).Register(sidecar)
		trafficlight.NewService(ctx.segment).Register(sidecar)
		segment.NewService(ctx.segment).Register(sidecar)
		// sidecar协程，用于提供gRPC服务
		if startSidecarServe {
			ctx.serving = true
			go func() {
				err := sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx, nil
}

func (ctx *Context) Job() string {
	return ctx.job
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) IDAllocator() *entity.IDAllocator {
	return ctx.ids
}

func (ctx *Context) Factory() *vehicle.Factory {
	return ctx.factory
}

func (ctx *Context) Segment() *segment.Segment {
	return ctx.segment
}

// Init 会话开始：重置时钟与车辆ID，放置初始车辆
func (ctx *Context) Init() error {
	ctx.clock.Init()
	ctx.ids.Reset()
	rc := ctx.runtimeConfig
	log.Infof("Road: %d (%.1fm, %d lanes)", rc.All.Road.ID, rc.All.Road.Length, rc.All.Road.Lanes)
	log.Infof("TrafficLight: %d", len(rc.All.Road.TrafficLights))
	log.Infof("VehicleType: %d", len(rc.Types))
	for _, iv := range rc.All.InitialVehicles {
		v, err := ctx.factory.New(iv.Label, iv.Lane, iv.Position, iv.Speed)
		if err != nil {
			return err
		}
		if err := ctx.segment.AddVehicle(v); err != nil {
			return err
		}
	}
	log.Infof("Vehicle: %d", len(rc.All.InitialVehicles))
	return nil
}

func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	ctx.segment.Close()
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
	}
	// wait for graceful stop
	if ctx.serving {
		<-ctx.sidecarCloseCh
	}
}
