package entity

import "sync/atomic"

const initialID = 1

// IDAllocator 车辆ID分配器
// 功能：为一次仿真会话分配单调递增且不复用的车辆ID
// 说明：由会话持有，会话开始时Reset，不使用全局计数器
type IDAllocator struct {
	next atomic.Int32
}

func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	a.Reset()
	return a
}

// Next 分配下一个ID（线程安全）
func (a *IDAllocator) Next() int32 {
	return a.next.Add(1) - 1
}

// Reset 重置为初始ID
func (a *IDAllocator) Reset() {
	a.next.Store(initialID)
}
