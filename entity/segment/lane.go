package segment

import (
	"fmt"
	"sync"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
)

// laneList 车道车辆链表，增删操作先进入缓冲区
// 说明：add/remove可在任意协程中调用，prepare时统一生效
type laneList struct {
	list              *entity.VehicleList
	addBuffer         []*entity.VehicleNode
	addBufferMutex    sync.Mutex
	removeBuffer      []*entity.VehicleNode
	removeBufferMutex sync.Mutex
}

// prepare 应用缓冲区并恢复链表顺序
// 返回：因位置超越前车而被重新排序的节点数
func (l *laneList) prepare() int {
	for _, v := range l.removeBuffer {
		l.list.Remove(v)
	}
	unsorted := l.list.PopUnsorted()
	l.list.Merge(append(l.addBuffer, unsorted...))
	clear(l.removeBuffer)
	clear(l.addBuffer)
	l.removeBuffer = l.removeBuffer[:0]
	l.addBuffer = l.addBuffer[:0]
	return len(unsorted)
}

func (l *laneList) add(node *entity.VehicleNode) {
	if node.Parent() != nil {
		log.Panic("add node who has parent")
	}
	l.addBufferMutex.Lock()
	l.addBuffer = append(l.addBuffer, node)
	l.addBufferMutex.Unlock()
}

func (l *laneList) remove(node *entity.VehicleNode) {
	if node.Parent() != l.list {
		log.Panicf("remove node %v (parent=%v) from wrong parent %v", node, node.Parent(), l.list)
	}
	l.removeBufferMutex.Lock()
	l.removeBuffer = append(l.removeBuffer, node)
	l.removeBufferMutex.Unlock()
}

// Lane 车道
// 功能：按车头位置降序维护车道上的车辆，并为每个节点建立到相邻车道前后车的支链
type Lane struct {
	index    int
	length   float64
	vehicles laneList
	side     [2]*Lane // 左右相邻车道
}

func newLane(segmentID int32, index int, length float64) *Lane {
	return &Lane{
		index:    index,
		length:   length,
		vehicles: laneList{
			list: &entity.VehicleList{ID: fmt.Sprintf("segment-%d-lane-%d", segmentID, index)},
		},
	}
}

// prepare 应用缓冲区的增删并重新排序
func (l *Lane) prepare() int {
	return l.vehicles.prepare()
}

// prepare2 构建支链
// 功能：为本车道每个节点记录相邻车道中的前车（车头位置不小于本车）与后车
// 说明：等待相邻车道完成主链构建后进行；两个链表都按位置降序，双指针一次遍历
func (l *Lane) prepare2() {
	for node := l.vehicles.list.First(); node != nil; node = node.Next() {
		node.Extra.Clear()
	}
	for _, which := range []int{entity.LEFT, entity.RIGHT} {
		neighbor := l.side[which]
		if neighbor == nil {
			continue
		}
		var nFront *entity.VehicleNode
		nBack := neighbor.vehicles.list.First()
		for node := l.vehicles.list.First(); node != nil; node = node.Next() {
			// nFront为最后一个位置大于等于node的车，nBack为第一个位置小于node的车
			for nBack != nil && nBack.S >= node.S {
				nFront = nBack
				nBack = nBack.Next()
			}
			node.Extra.Links[which][entity.AFTER] = nFront
			node.Extra.Links[which][entity.BEFORE] = nBack
		}
	}
}

// checkOrder 检查相邻车辆是否重叠
// 返回：发生重叠的车辆对数
func (l *Lane) checkOrder() int {
	n := 0
	for node := l.vehicles.list.First(); node != nil && node.Next() != nil; node = node.Next() {
		back := node.Next()
		// 影子节点与后半程变道车辆允许重叠
		if node.Extra.Shadow || back.Extra.Shadow {
			continue
		}
		if gap := entity.NetDistance(back.Value, node.Value); gap < -overlapTolerance {
			log.Errorf("lane %d: vehicle %v overlaps its leader %v (gap %.3f)", l.index, back.Value, node.Value, gap)
			n++
		}
	}
	return n
}

func (l *Lane) Index() int {
	return l.index
}

func (l *Lane) Length() float64 {
	return l.length
}

// NeighborLane 相邻车道，不存在时返回nil
func (l *Lane) NeighborLane(side int) *Lane {
	return l.side[side]
}

// Vehicles 车道链表（包括变道中车辆的影子节点）
func (l *Lane) Vehicles() *entity.VehicleList {
	return l.vehicles.list
}

// FirstVehicle 最下游的节点
func (l *Lane) FirstVehicle() *entity.VehicleNode {
	return l.vehicles.list.First()
}

// LastVehicle 最上游的节点
func (l *Lane) LastVehicle() *entity.VehicleNode {
	return l.vehicles.list.Last()
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane{%d, n=%d}", l.index, l.vehicles.list.Len())
}
