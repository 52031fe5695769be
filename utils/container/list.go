package container

import (
	"cmp"
	"fmt"
	"log"

	"golang.org/x/exp/slices"
)

// IHasVAndLength 具有速度和长度属性的接口
// 功能：定义车辆作为链表元素时需要的关键信息接口
type IHasVAndLength interface {
	V() float64      // 获取速度
	Length() float64 // 获取长度
}

// ListNode 双向链表中的节点
// 功能：表示车道链表中的一个节点，S为车头位置
// 说明：链表按S降序排列，prev是下游（前方）节点，next是上游（后方）节点
type ListNode[T IHasVAndLength, E any] struct {
	parent     *List[T, E]     // 所属链表
	prev, next *ListNode[T, E] // 前方和后方节点
	S          float64         // 键值（车头位置）
	Value      T               // 主要值
	Extra      E               // 额外信息
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

// Prev 获取前方（下游）节点，链表头返回nil
func (n *ListNode[T, E]) Prev() *ListNode[T, E] {
	return n.prev
}

// Next 获取后方（上游）节点，链表尾返回nil
func (n *ListNode[T, E]) Next() *ListNode[T, E] {
	return n.next
}

// Parent 获取节点所在的链表
func (n *ListNode[T, E]) Parent() *List[T, E] {
	return n.parent
}

// V 获取节点值的速度
func (n *ListNode[T, E]) V() float64 {
	return n.Value.V()
}

// RearS 获取节点的车尾位置
func (n *ListNode[T, E]) RearS() float64 {
	return n.S - n.Value.Length()
}

// InsertBefore 在节点前（下游方向）插入新节点
// 参数：add-要插入的新节点，不能已经属于某个链表
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent, add.next, add.prev = n.parent, n, n.prev
	if n.prev != nil {
		n.prev.next = add
	} else {
		n.parent.head = add
	}
	n.prev = add
	n.parent.length++
}

// List 车道车辆双向链表
// 功能：按S从大到小（从下游到上游）维护车辆顺序
// 说明：head为最下游车辆，tail为最上游车辆
type List[T IHasVAndLength, E any] struct {
	ID         string          // 链表标识符
	head, tail *ListNode[T, E] // 头尾节点指针
	length     int             // 链表长度
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// Keys 获取链表中所有节点的键值（从下游到上游）
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, l.length)
	for i, node := 0, l.head; node != nil; node = node.next {
		keys[i] = node.S
		i++
	}
	return keys
}

// Nodes 获取链表中所有节点（从下游到上游）
func (l *List[T, E]) Nodes() []*ListNode[T, E] {
	nodes := make([]*ListNode[T, E], 0, l.length)
	for node := l.head; node != nil; node = node.next {
		nodes = append(nodes, node)
	}
	return nodes
}

// Len 获取双向链表长度
func (l *List[T, E]) Len() int {
	return l.length
}

// PushFront 向链表头部（最下游）插入节点
func (l *List[T, E]) PushFront(add *ListNode[T, E]) {
	if l.head == nil {
		l.attachFirst(add)
		return
	}
	l.head.InsertBefore(add)
}

// PushBack 向链表尾部（最上游）插入节点
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	if l.tail == nil {
		l.attachFirst(add)
		return
	}
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.parent, add.prev, add.next = l, l.tail, nil
	l.tail.next = add
	l.tail = add
	l.length++
}

// attachFirst 向空链表插入第一个节点
func (l *List[T, E]) attachFirst(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent, add.prev, add.next = l, nil, nil
	l.head, l.tail = add, add
	l.length = 1
}

// Remove 从链表中移除节点
// 说明：节点必须属于当前链表，否则panic
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// First 获取最下游节点
func (l *List[T, E]) First() *ListNode[T, E] {
	return l.head
}

// Last 获取最上游节点
func (l *List[T, E]) Last() *ListNode[T, E] {
	return l.tail
}

// FrontOf 查找位置s处的前车与后车
// 功能：返回第一个S>=s的最上游节点（前车）和第一个S<s的最下游节点（后车）
// 说明：线性扫描，等位置的节点视为前车
func (l *List[T, E]) FrontOf(s float64) (front, back *ListNode[T, E]) {
	back = l.head
	for back != nil && back.S >= s {
		front = back
		back = back.next
	}
	return front, back
}

// PopUnsorted 移除逆序节点
// 功能：移除S大于前方节点S的节点（即跑到了前车前面的节点）
// 返回：被移除的逆序节点数组
// 说明：与Merge配合使用以恢复降序
func (l *List[T, E]) PopUnsorted() (unsorted []*ListNode[T, E]) {
	for node := l.head; node != nil; {
		next := node.next
		if node.prev != nil && node.prev.S < node.S {
			l.Remove(node)
			unsorted = append(unsorted, node)
		}
		node = next
	}
	return unsorted
}

// Merge 批量插入节点
// 功能：将一批节点按S降序插入链表
// 算法说明：
// 1. 按S降序稳定排序待插入节点
// 2. 归并：从链表头开始向上游推进，插入到第一个S更小的节点之前
// 说明：与已有节点S相等时，新节点插在已有节点之后
func (l *List[T, E]) Merge(adds []*ListNode[T, E]) {
	slices.SortStableFunc(adds, func(a, b *ListNode[T, E]) int {
		return cmp.Compare(b.S, a.S)
	})
	node := l.head
	for _, add := range adds {
		for node != nil && node.S >= add.S {
			node = node.next
		}
		if node != nil {
			node.InsertBefore(add)
		} else {
			l.PushBack(add)
		}
	}
}
