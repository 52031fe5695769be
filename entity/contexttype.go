package entity

import (
	"github.com/tsinghua-fib-lab/microtraffic-go/clock"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

// ITaskContext 仿真会话上下文
type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
	IDAllocator() *IDAllocator
}
