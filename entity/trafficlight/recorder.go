package trafficlight

import (
	"sync"
	"sync/atomic"
)

// RecordFunc 每步记录回调
// 参数：simulationTime-仿真时间，iteration-步数，lights-信号灯状态快照
type RecordFunc func(simulationTime float64, iteration int64, lights []LightSnapshot)

type record struct {
	t         float64
	iteration int64
	lights    []LightSnapshot
}

// Recorder 异步记录分发器
// 功能：在独立协程中调用记录回调，仿真步不等待回调完成
// 说明：队列满时丢弃当前快照并告警，保证仿真不会被回调阻塞
type Recorder struct {
	fn      RecordFunc
	ch      chan record
	wg      sync.WaitGroup
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewRecorder 创建并启动记录分发器
// 参数：fn-记录回调，buffer-异步队列长度
func NewRecorder(fn RecordFunc, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1
	}
	r := &Recorder{fn: fn, ch: make(chan record, buffer)}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for rec := range r.ch {
			r.fn(rec.t, rec.iteration, rec.lights)
		}
	}()
	return r
}

// Record 投递一条记录，不阻塞
func (r *Recorder) Record(t float64, iteration int64, lights []LightSnapshot) {
	if r.closed.Load() {
		return
	}
	select {
	case r.ch <- record{t: t, iteration: iteration, lights: lights}:
	default:
		n := r.dropped.Add(1)
		log.Warnf("recorder queue is full, drop snapshot at t=%.2f (iteration %d, %d dropped)", t, iteration, n)
	}
}

// Dropped 因队列满被丢弃的记录数
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close 停止接收新记录，等待队列中的记录处理完毕
// 说明：必须与Record在同一协程（仿真主循环）中调用
func (r *Recorder) Close() {
	if r.closed.Swap(true) {
		return
	}
	close(r.ch)
	r.wg.Wait()
}
