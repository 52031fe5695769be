package lanechange

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/longitudinal"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

type testVehicle struct {
	id    int32
	x, v  float64
	model entity.ILongitudinalModel
}

func (f *testVehicle) ID() int32                { return f.id }
func (f *testVehicle) Label() string            { return "car" }
func (f *testVehicle) Type() entity.VehicleType { return entity.VehicleTypeVehicle }
func (f *testVehicle) V() float64               { return f.v }
func (f *testVehicle) A() float64               { return 0 }
func (f *testVehicle) Length() float64          { return 5 }
func (f *testVehicle) Width() float64           { return 2 }
func (f *testVehicle) FrontPosition() float64   { return f.x }
func (f *testVehicle) RearPosition() float64    { return f.x - 5 }
func (f *testVehicle) Lane() int                { return 1 }
func (f *testVehicle) String() string           { return fmt.Sprintf("car(%d)", f.id) }

func (f *testVehicle) LongitudinalModel() entity.ILongitudinalModel {
	return f.model
}

func (f *testVehicle) LaneChangeStatus() entity.LaneChangeStatus {
	return entity.LaneChangeStable
}

var idm = longitudinal.New(config.LongitudinalModel{Name: "IDM"}, 1, nil)

func car(id int32, x, v float64) *testVehicle {
	return &testVehicle{id: id, x: x, v: v, model: idm}
}

func newModel(european bool, bias float64) *Model {
	return New(&config.LaneChange{
		Politeness:       0.2,
		Threshold:        0.2,
		BiasRight:        bias,
		SafeDeceleration: 4,
		MinGap:           2,
		EuropeanRules:    european,
	})
}

func TestNilConfigDisablesLaneChange(t *testing.T) {
	assert.Nil(t, New(nil))
	assert.Panics(t, func() { New(&config.LaneChange{}) })
	m := New(&config.LaneChange{SafeDeceleration: 4, EuropeanRules: true})
	assert.InDelta(t, 60/3.6, m.CritSpeedEur(), 1e-12)
}

func TestOvertakeSlowLeader(t *testing.T) {
	m := newModel(false, 0)
	me := car(1, 0, 15)
	nb := &Neighborhood{
		Front: car(2, 25, 5),
		Sides: [2]Side{entity.LEFT: {Available: true}},
	}
	d := m.Decide(me, nb, 1, 1, 1)
	require.True(t, d.Change)
	assert.Equal(t, entity.LEFT, d.Side)
	assert.Greater(t, d.Margin, 0.)
	assert.InDelta(t, idm.CalcAcc(me, nil, 1, 1, 1), d.Acc, 1e-12)
}

func TestNoIncentiveNoChange(t *testing.T) {
	m := newModel(false, 0)
	me := car(1, 0, 15)
	nb := &Neighborhood{
		Sides: [2]Side{entity.LEFT: {Available: true}, entity.RIGHT: {Available: true}},
	}
	assert.False(t, m.Decide(me, nb, 1, 1, 1).Change)
}

func TestTieBreak(t *testing.T) {
	me := car(1, 0, 15)
	nb := &Neighborhood{
		Front: car(2, 25, 5),
		Sides: [2]Side{entity.LEFT: {Available: true}, entity.RIGHT: {Available: true}},
	}
	d := newModel(false, 0).Decide(me, nb, 1, 1, 1)
	require.True(t, d.Change)
	assert.Equal(t, entity.LEFT, d.Side)
	// 靠右偏置打破对称
	d = newModel(false, 0.3).Decide(me, nb, 1, 1, 1)
	require.True(t, d.Change)
	assert.Equal(t, entity.RIGHT, d.Side)
}

func TestSafetyCriteria(t *testing.T) {
	m := newModel(false, 0)
	me := car(1, 0, 15)
	front := car(2, 25, 5)
	// 新后车过近且过快，需要的减速度超过safeDeceleration
	nb := &Neighborhood{
		Front: front,
		Sides: [2]Side{entity.LEFT: {Available: true, Back: car(3, -8, 25)}},
	}
	assert.False(t, m.Decide(me, nb, 1, 1, 1).Change)
	// 新前车净间距小于minGap
	nb.Sides[entity.LEFT] = Side{Available: true, Front: car(4, 6, 15)}
	assert.False(t, m.Decide(me, nb, 1, 1, 1).Change)
	// 车道不存在
	nb.Sides[entity.LEFT] = Side{}
	assert.False(t, m.Decide(me, nb, 1, 1, 1).Change)
}

func TestEuropeanRulesProtectFasterFollower(t *testing.T) {
	me := car(1, 0, 15)
	// 新后车比本车快，变道后需要约3m/s²的减速度
	nb := &Neighborhood{
		Front: car(2, 25, 5),
		Sides: [2]Side{entity.LEFT: {Available: true, Back: car(3, -22, 16)}},
	}
	accBack := idm.CalcAcc(nb.Sides[entity.LEFT].Back, me, 1, 1, 1)
	require.Less(t, accBack, -2.)
	require.Greater(t, accBack, -4.)

	d := newModel(false, 0).Decide(me, nb, 1, 1, 1)
	assert.True(t, d.Change)
	assert.Equal(t, entity.LEFT, d.Side)
	assert.False(t, newModel(true, 0).Decide(me, nb, 1, 1, 1).Change)
}

func TestDecideKeepsStochasticStateUnchanged(t *testing.T) {
	for _, name := range []string{"HDM", "KRAUSS"} {
		model := longitudinal.New(config.LongitudinalModel{Name: name}, 0.5, randengine.New(11))
		me := &testVehicle{id: 1, x: 0, v: 15, model: model}
		back := &testVehicle{id: 4, x: -30, v: 15, model: model}
		nb := &Neighborhood{
			Front: car(2, 25, 5),
			Back:  back,
			Sides: [2]Side{
				entity.LEFT:  {Available: true, Front: car(3, 60, 10), Back: &testVehicle{id: 5, x: -40, v: 15, model: model}},
				entity.RIGHT: {Available: true},
			},
		}
		before := model.CalcAccSimple(30, 15, 0)
		first := newModel(true, 0).Decide(me, nb, 1, 1, 1)
		for range 3 {
			assert.Equal(t, first, newModel(true, 0).Decide(me, nb, 1, 1, 1), name)
		}
		assert.Equal(t, before, model.CalcAccSimple(30, 15, 0), name)
	}
}

func TestVehicleWithoutModelNeverChanges(t *testing.T) {
	m := newModel(false, 0)
	me := &testVehicle{id: 1, x: 0, v: 0}
	nb := &Neighborhood{Sides: [2]Side{entity.LEFT: {Available: true}}}
	assert.False(t, m.Decide(me, nb, 1, 1, 1).Change)
}

func TestClaims(t *testing.T) {
	c := NewClaims()
	a, b := car(1, 0, 10), car(2, -20, 10)
	front, back := car(3, 30, 10), car(4, -40, 10)
	assert.True(t, c.Claim(a, 0, front, back))
	assert.True(t, c.Claim(a, 0, front, back))
	assert.False(t, c.Claim(b, 0, front, back))
	// 其他间隙不受影响
	assert.True(t, c.Claim(b, 0, nil, back))
	assert.True(t, c.Claim(b, 2, front, back))
	assert.Equal(t, 3, c.Len())
	c.Reset()
	assert.True(t, c.Claim(b, 0, front, back))
}
