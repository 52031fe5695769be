package container

import (
	"sync"
)

// IIncrementalItem 支持增量更新的元素接口
// 说明：元素需要记录自己在数组中的下标，删除时据此O(1)定位
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类，可嵌入结构体以实现IIncrementalItem
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组
// 功能：维护仿真中的全部车辆，增删操作先进入缓冲区，在Prepare时统一生效
// 说明：Add/Remove可以在任意协程中调用，Data/Prepare只能在单一协程中调用
type IncrementalArray[T IIncrementalItem] struct {
	data        []T        // 主数据数组
	add         []T        // 待添加的元素列表
	remove      []T        // 待删除的元素列表
	addMutex    sync.Mutex // 添加操作的互斥锁
	removeMutex sync.Mutex // 删除操作的互斥锁
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 获取已生效的元素数量
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取已生效的元素
// 说明：返回内部切片，调用方不得修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Pending 获取待添加和待删除的元素数量
func (a *IncrementalArray[T]) Pending() (int, int) {
	a.addMutex.Lock()
	nAdd := len(a.add)
	a.addMutex.Unlock()
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	return nAdd, len(a.remove)
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
func (a *IncrementalArray[T]) Remove(value T) {
	a.removeMutex.Lock()
	defer a.removeMutex.Unlock()
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 算法说明：
// 1. 将待删除元素的下标标记为-1
// 2. 压缩数组，跳过被标记的元素并重写下标
// 3. 新元素追加到末尾并设置下标
// 说明：剩余元素保持相对顺序，追加顺序与Add调用顺序一致，保证同一种子下结果可复现
func (a *IncrementalArray[T]) Prepare() {
	a.addMutex.Lock()
	a.removeMutex.Lock()
	defer a.addMutex.Unlock()
	defer a.removeMutex.Unlock()

	if len(a.remove) > 0 {
		for _, x := range a.remove {
			x.SetIndex(-1)
		}
		write := 0
		for _, x := range a.data {
			if x.Index() < 0 {
				continue
			}
			a.data[write] = x
			x.SetIndex(write)
			write++
		}
		clear(a.data[write:])
		a.data = a.data[:write]
	}
	for _, x := range a.add {
		x.SetIndex(len(a.data))
		a.data = append(a.data, x)
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}
