package task

import (
	"flag"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 算法说明：
// 1. 更新时钟
// 2. 心跳日志：定期输出仿真时间、车辆数与统计
// 3. 入流：按流量在路段起点生成车辆，下一次Advance时生效
func (ctx *Context) prepare() {
	ctx.clock.Tick()
	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		stats := ctx.segment.Statistics()
		log.Infof(
			"STEP: %d(%s, %.1f%%) vehicles=%d completed=%d",
			ctx.clock.InternalStep, ctx.clock, ctx.clock.Progress()*100,
			len(ctx.segment.Vehicles()), stats.NumCompletedTrips,
		)
	}
	if n := ctx.segment.Inflow(ctx.clock.DT); n > 0 {
		log.Debugf("step %d: %d vehicles enter", ctx.clock.InternalStep, n)
	}
}

// update 更新阶段，每步执行一次，推进路段
func (ctx *Context) update() {
	ctx.segment.Advance(ctx.clock.DT)
}

// Step 不经过sidecar同步直接推进一步（独立运行与测试使用）
func (ctx *Context) Step() {
	ctx.prepare()
	ctx.update()
}

// Run 运行
func (ctx *Context) Run() {
	// 初始化
	if err := ctx.Init(); err != nil {
		log.Panicf("init failed: %v", err)
	}
	// init syncer
	ctx.sidecar.Step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := ctx.sidecar.Step(ctx.clock.IsLastStep())
		if close || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
