// 信号灯相位机、车辆接近信号灯的决策与记录
package trafficlight

import (
	"fmt"
	"math"
	"strings"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"google.golang.org/protobuf/proto"
)

// Phase 信号灯相位
type Phase int32

const (
	PhaseGreen      Phase = iota // 绿灯
	PhaseGreenToRed              // 绿转红（黄灯）
	PhaseRed                     // 红灯
	PhaseRedToGreen              // 红转绿
	numPhases
)

var phaseNames = [numPhases]string{"green", "green_to_red", "red", "red_to_green"}

// 输出到protobuf时各相位对应的灯色
var phaseStates = [numPhases]mapv2.LightState{
	mapv2.LightState_LIGHT_STATE_GREEN,
	mapv2.LightState_LIGHT_STATE_YELLOW,
	mapv2.LightState_LIGHT_STATE_RED,
	mapv2.LightState_LIGHT_STATE_YELLOW,
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return fmt.Sprintf("phase(%d)", int32(p))
	}
	return phaseNames[p]
}

// ParsePhase 解析配置中的相位名称，空字符串视为绿灯
func ParsePhase(s string) (Phase, error) {
	if s == "" {
		return PhaseGreen, nil
	}
	for i, name := range phaseNames {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return PhaseGreen, fmt.Errorf("unknown traffic light phase %q", s)
}

// Light 固定周期信号灯
// 功能：按GREEN → GREEN_TO_RED → RED → RED_TO_GREEN → GREEN循环切换相位
// 说明：时长为0的相位被直接跳过
type Light struct {
	id        int32
	position  float64
	durations [numPhases]float64
	cycle     float64

	phase     Phase
	remaining float64 // 当前相位剩余时间

	pb *mapv2.TrafficLight // 周期描述，构造后不变
}

// New 根据配置创建信号灯
// 参数：cfg-信号灯配置
// 返回：信号灯，配置非法时返回错误
// 说明：offset为初始相位已经经过的时间，构造时直接推进
func New(cfg config.TrafficLight) (*Light, error) {
	phase, err := ParsePhase(cfg.InitialPhase)
	if err != nil {
		return nil, err
	}
	l := &Light{
		id:       cfg.ID,
		position: cfg.Position,
		durations: [numPhases]float64{
			cfg.Durations.Green, cfg.Durations.GreenToRed, cfg.Durations.Red, cfg.Durations.RedToGreen,
		},
		phase: phase,
	}
	for _, d := range l.durations {
		if d < 0 {
			return nil, fmt.Errorf("traffic light %d: negative phase duration %v", l.id, d)
		}
		l.cycle += d
	}
	if l.cycle <= 0 {
		return nil, fmt.Errorf("traffic light %d: empty cycle", l.id)
	}
	if cfg.Offset < 0 {
		return nil, fmt.Errorf("traffic light %d: negative offset %v", l.id, cfg.Offset)
	}
	l.remaining = l.durations[phase]
	l.Update(math.Mod(cfg.Offset, l.cycle))

	l.pb = &mapv2.TrafficLight{JunctionId: l.id}
	for p, d := range l.durations {
		l.pb.Phases = append(l.pb.Phases, &mapv2.Phase{
			Duration: d,
			States:   []mapv2.LightState{phaseStates[p]},
		})
	}
	return l, nil
}

// Update 推进信号灯时间
// 参数：dt-时间步长
func (l *Light) Update(dt float64) {
	l.remaining -= dt
	for l.remaining <= 0 {
		l.phase = (l.phase + 1) % numPhases
		l.remaining += l.durations[l.phase]
	}
}

func (l *Light) ID() int32 {
	return l.id
}

// Position 停车线位置
func (l *Light) Position() float64 {
	return l.position
}

func (l *Light) Phase() Phase {
	return l.phase
}

// RemainingTime 当前相位剩余时间
func (l *Light) RemainingTime() float64 {
	return l.remaining
}

// Cycle 周期时长
func (l *Light) Cycle() float64 {
	return l.cycle
}

func (l *Light) IsGreen() bool    { return l.phase == PhaseGreen }
func (l *Light) IsGreenRed() bool { return l.phase == PhaseGreenToRed }
func (l *Light) IsRed() bool      { return l.phase == PhaseRed }
func (l *Light) IsRedGreen() bool { return l.phase == PhaseRedToGreen }

// ToPb 导出信号灯周期，每个相位一个Phase，每个Phase只有一个灯色
func (l *Light) ToPb() *mapv2.TrafficLight {
	return proto.Clone(l.pb).(*mapv2.TrafficLight)
}

// Snapshot 当前状态快照
func (l *Light) Snapshot() LightSnapshot {
	return LightSnapshot{ID: l.id, Position: l.position, Phase: l.phase, RemainingTime: l.remaining}
}

func (l *Light) String() string {
	return fmt.Sprintf("Light{id=%d, pos=%.1f, %v, remaining=%.1f}", l.id, l.position, l.phase, l.remaining)
}

// LightSnapshot 信号灯状态快照，用于记录回调
type LightSnapshot struct {
	ID            int32
	Position      float64
	Phase         Phase
	RemainingTime float64
}
