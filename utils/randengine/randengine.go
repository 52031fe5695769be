// 随机数引擎，包装了golang.org/x/exp/rand，为随机驾驶行为提供可复现的随机数
package randengine

import (
	"flag"
	"log"
	"math"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为随机跟驰模型、加速度噪声与入流车型抽样提供可复现的随机数
// 说明：非线程安全，每辆车与每个入流各持有一个引擎，只在自己的计算中使用
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 参数：seed-随机数种子，最终种子为seed+rand.seed_offset
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Derive 派生子引擎
// 功能：根据会话种子与子对象ID派生出独立的子引擎（如每辆车一个）
// 参数：seed-会话种子，id-子对象ID
// 说明：派生只依赖(seed, id)，与车辆创建顺序无关
func Derive(seed uint64, id int32) *Engine {
	// splitmix64
	z := seed + uint64(id)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return New(z)
}

// DiscreteDistribution 按权重抽取下标
// 参数：weight-非负权重，不要求归一化
// 返回：[0, len(weight))内的下标
func (e *Engine) DiscreteDistribution(weight []float64) int32 {
	total := .0
	for _, w := range weight {
		total += w
	}
	random := total * e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return int32(i)
		}
	}
	log.Panicf("randengine: DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以概率p返回true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// OU 将单位方差的Ornstein-Uhlenbeck过程推进dt
// 参数：x-当前值，dt-步长，tau-相关时间，tau非正时退化为白噪声
// 返回：新的值，平稳分布为标准正态分布
func (e *Engine) OU(x, dt, tau float64) float64 {
	if tau <= 0 {
		return e.NormFloat64()
	}
	beta := math.Exp(-dt / tau)
	return beta*x + math.Sqrt(1-beta*beta)*e.NormFloat64()
}
