package clock

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

func TestClockStepping(t *testing.T) {
	c := New(config.ControlStep{Start: 10, Total: 3, Interval: 0.5})
	assert.Equal(t, 5., c.T)
	assert.Equal(t, 0., c.Elapsed())
	assert.False(t, c.IsLastStep())
	assert.Equal(t, 5.5, c.Tick())
	assert.InDelta(t, 1./3, c.Progress(), 1e-9)
	c.Tick()
	assert.True(t, c.IsLastStep())
	assert.Equal(t, 1., c.Elapsed())

	c.Init()
	assert.Equal(t, int32(10), c.InternalStep)
	assert.Equal(t, 0., c.Progress())
}

func TestClockFormat(t *testing.T) {
	c := New(config.ControlStep{Interval: 0.5})
	c.T = 3725.5
	h, m, s := c.HMS()
	assert.Equal(t, 1, h)
	assert.Equal(t, 2, m)
	assert.InDelta(t, 5.5, s, 1e-9)
	assert.Equal(t, "01:02:05.50", c.String())
	assert.Equal(t, 1., c.Progress())
}

func TestNow(t *testing.T) {
	c := New(config.ControlStep{Start: 0, Total: 10, Interval: 1})
	c.Tick()
	res, err := NewService(c).Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 1., res.Msg.T)
}
