package trafficlight

import (
	"cmp"

	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"golang.org/x/exp/slices"
)

// Lights 路段上按位置升序排列的信号灯集合
type Lights struct {
	data []*Light
	byID map[int32]*Light
}

// NewLights 根据配置创建信号灯集合
// 说明：只在构造时排序一次，排序稳定，位置相同的信号灯保持配置顺序
func NewLights(cfgs []config.TrafficLight) (*Lights, error) {
	ls := &Lights{
		data: make([]*Light, 0, len(cfgs)),
		byID: make(map[int32]*Light, len(cfgs)),
	}
	for _, cfg := range cfgs {
		l, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if _, ok := ls.byID[l.id]; ok {
			log.Warnf("duplicated traffic light id %d, the later one is not reachable by id", l.id)
		} else {
			ls.byID[l.id] = l
		}
		ls.data = append(ls.data, l)
	}
	slices.SortStableFunc(ls.data, func(a, b *Light) int {
		return cmp.Compare(a.position, b.position)
	})
	return ls, nil
}

// Update 推进所有信号灯
func (ls *Lights) Update(dt float64) {
	for _, l := range ls.data {
		l.Update(dt)
	}
}

// NextDownstream 查找位置严格大于front的第一个信号灯，不存在时返回nil
func (ls *Lights) NextDownstream(front float64) *Light {
	i, _ := slices.BinarySearchFunc(ls.data, front, func(l *Light, x float64) int {
		if l.position <= x {
			return -1
		}
		return 1
	})
	if i >= len(ls.data) {
		return nil
	}
	return ls.data[i]
}

// Get 按ID查找信号灯
func (ls *Lights) Get(id int32) (*Light, bool) {
	l, ok := ls.byID[id]
	return l, ok
}

func (ls *Lights) Len() int {
	return len(ls.data)
}

// All 按位置升序的信号灯列表（只读）
func (ls *Lights) All() []*Light {
	return ls.data
}

// Snapshots 所有信号灯的状态快照
func (ls *Lights) Snapshots() []LightSnapshot {
	out := make([]LightSnapshot, len(ls.data))
	for i, l := range ls.data {
		out[i] = l.Snapshot()
	}
	return out
}
