package lanechange

import "github.com/tsinghua-fib-lab/microtraffic-go/entity"

type gapKey struct {
	lane        int
	front, back int32 // 0表示不存在
}

// Claims 同一步内已被占用的目标间隙
// 功能：顺序处理变道决策时，防止两辆车在同一步并入同一个间隙
// 说明：间隙由(目标车道, 前车ID, 后车ID)确定，每步开始时Reset
type Claims struct {
	gaps map[gapKey]int32
}

func NewClaims() *Claims {
	return &Claims{gaps: make(map[gapKey]int32)}
}

// Claim 尝试占用间隙，成功返回true；间隙已被其他车辆占用时返回false
func (c *Claims) Claim(me entity.IVehicle, lane int, front, back entity.IVehicle) bool {
	k := gapKey{lane: lane, front: idOf(front), back: idOf(back)}
	if owner, ok := c.gaps[k]; ok && owner != me.ID() {
		return false
	}
	c.gaps[k] = me.ID()
	return true
}

// Len 本步已占用的间隙数
func (c *Claims) Len() int {
	return len(c.gaps)
}

func (c *Claims) Reset() {
	clear(c.gaps)
}

func idOf(v entity.IVehicle) int32 {
	if v == nil {
		return 0
	}
	return v.ID()
}
