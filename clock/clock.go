// 仿真时钟：固定步长，步数区间[start, end)
package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// Clock 仿真时钟
// 功能：按固定步长DT推进路段时间，记录当前步数
// 说明：
// 1. T = InternalStep * DT，起始时刻由start步决定，允许非零
// 2. Tick在每步的准备阶段调用，路段的Advance在同一步的更新阶段使用DT
type Clock struct {
	DT           float64 // 步长（秒）
	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数

	start int32
	end   int32
}

func New(step config.ControlStep) *Clock {
	c := &Clock{
		DT:    step.Interval,
		start: step.Start,
		end:   step.Start + step.Total,
	}
	c.Init()
	return c
}

// Init 回到起始步
func (c *Clock) Init() {
	c.InternalStep = c.start
	c.T = c.at(c.InternalStep)
}

// Tick 前进一步，返回新的仿真时间
func (c *Clock) Tick() float64 {
	c.InternalStep++
	c.T = c.at(c.InternalStep)
	return c.T
}

// 用乘法而不是累加，避免长时间运行的浮点误差
func (c *Clock) at(step int32) float64 {
	return float64(step) * c.DT
}

// IsLastStep 当前步是否为区间内最后一步
func (c *Clock) IsLastStep() bool {
	return c.InternalStep+1 >= c.end
}

// Elapsed 从起始步开始经过的仿真时间
func (c *Clock) Elapsed() float64 {
	return c.T - c.at(c.start)
}

// Progress 已完成的步数占总步数的比例，总步数为0时返回1
func (c *Clock) Progress() float64 {
	total := c.end - c.start
	if total <= 0 {
		return 1
	}
	return min(float64(c.InternalStep-c.start)/float64(total), 1)
}

// HMS 当前时间的时、分、秒（秒保留小数部分）
func (c *Clock) HMS() (int, int, float64) {
	whole := int(c.T)
	h, m := whole/3600, whole%3600/60
	return h, m, c.T - float64(h*3600+m*60)
}

func (c *Clock) String() string {
	h, m, s := c.HMS()
	return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
}
