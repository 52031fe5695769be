package longitudinal

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/randengine"
)

type fakeVehicle struct {
	id     int32
	x      float64
	v      float64
	a      float64
	length float64
	model  entity.ILongitudinalModel
}

func (f *fakeVehicle) ID() int32                { return f.id }
func (f *fakeVehicle) Label() string            { return "fake" }
func (f *fakeVehicle) Type() entity.VehicleType { return entity.VehicleTypeVehicle }
func (f *fakeVehicle) V() float64               { return f.v }
func (f *fakeVehicle) A() float64               { return f.a }
func (f *fakeVehicle) Length() float64          { return f.length }
func (f *fakeVehicle) Width() float64           { return 2 }
func (f *fakeVehicle) FrontPosition() float64   { return f.x }
func (f *fakeVehicle) RearPosition() float64    { return f.x - f.length }
func (f *fakeVehicle) Lane() int                { return 0 }
func (f *fakeVehicle) String() string           { return fmt.Sprintf("fake(%d)", f.id) }

func (f *fakeVehicle) LongitudinalModel() entity.ILongitudinalModel {
	return f.model
}

func (f *fakeVehicle) LaneChangeStatus() entity.LaneChangeStatus {
	return entity.LaneChangeStable
}

var allModels = []string{"IDM", "ACC", "GIPPS", "NEWELL", "KRAUSS", "OVM_FVDM", "NSM", "KKW", "HDM"}

func newModel(t *testing.T, name string) entity.ILongitudinalModel {
	t.Helper()
	m := New(config.LongitudinalModel{Name: name}, 1, randengine.New(3))
	require.NotNil(t, m)
	return m
}

func TestFactoryDispatch(t *testing.T) {
	for _, name := range allModels {
		m := newModel(t, name)
		assert.Equal(t, entity.ModelName(name), m.ModelName())
		assert.Equal(t, name == "NSM" || name == "KKW", m.IsCA(), name)
		assert.Greater(t, m.DesiredSpeed(), 0.)
	}
	// 名称大小写不敏感
	assert.Equal(t, entity.ModelIDM, New(config.LongitudinalModel{Name: "idm"}, 1, nil).ModelName())
}

func TestFactoryRejectsBadConfig(t *testing.T) {
	assert.Panics(t, func() { New(config.LongitudinalModel{Name: "PTM"}, 1, nil) })
	assert.Panics(t, func() {
		New(config.LongitudinalModel{Name: "IDM", IDM: &config.IDM{V0: 0, A: 1, B: 1}}, 1, nil)
	})
	assert.Panics(t, func() {
		New(config.LongitudinalModel{Name: "OVM_FVDM", OVMFVDM: &config.OVMFVDM{
			V0: 10, Tau: 1, TransitionWidth: 1, Variant: "cubic",
		}}, 1, nil)
	})
}

func TestIDMFreeFlowApproachesDesiredSpeedMonotonically(t *testing.T) {
	m := newModel(t, "IDM")
	me := &fakeVehicle{length: 5, model: m}
	dt := 0.5
	for range 400 {
		acc := m.CalcAcc(me, nil, 1, 1, 1)
		vNew := me.v + acc*dt
		assert.GreaterOrEqual(t, vNew, me.v)
		assert.LessOrEqual(t, vNew, m.DesiredSpeed())
		me.v = vNew
	}
	assert.InDelta(t, m.DesiredSpeed(), me.v, 0.5)
}

func TestFreeFlowFromRestAccelerates(t *testing.T) {
	for _, name := range allModels {
		m := newModel(t, name)
		assert.Greater(t, m.CalcAccSimple(math.Inf(1), 0, 0), 0., name)
	}
}

func TestZeroAndNegativeGapStayFinite(t *testing.T) {
	for _, name := range allModels {
		m := newModel(t, name)
		for _, gap := range []float64{0, -1} {
			me := &fakeVehicle{x: 0, v: 10, length: 5, model: m}
			front := &fakeVehicle{x: 5 + gap, v: 0, length: 5}
			acc := m.CalcAcc(me, front, 1, 1, 1)
			assert.False(t, math.IsNaN(acc), name)
			assert.False(t, math.IsInf(acc, 0), name)
			assert.LessOrEqual(t, acc, 0., name)
			assert.GreaterOrEqual(t, acc, -maxModelDeceleration-10, name)
		}
	}
}

func TestIDMInteraction(t *testing.T) {
	m := newModel(t, "IDM")
	me := &fakeVehicle{x: 0, v: 20, length: 5, model: m}
	far := &fakeVehicle{x: 205, v: 20, length: 5}
	near := &fakeVehicle{x: 20, v: 10, length: 5}
	free := m.CalcAcc(me, nil, 1, 1, 1)
	assert.Greater(t, free, m.CalcAcc(me, far, 1, 1, 1))
	assert.Less(t, m.CalcAcc(me, near, 1, 1, 1), -1.5)
	// 增大车头时距系数会更保守
	assert.Less(t, m.CalcAcc(me, far, 2, 1, 1), m.CalcAcc(me, far, 1, 1, 1))
	// 等价于直接给定间距
	assert.InDelta(t, m.CalcAcc(me, near, 1, 1, 1), m.CalcAccSimple(15, 20, 10), 1e-12)
}

func TestACCIsCalmerThanIDMOnCutIn(t *testing.T) {
	idm := newModel(t, "IDM")
	acc := newModel(t, "ACC")
	// 前车切入，间距很小但速度相同且前车不减速
	me := &fakeVehicle{x: 0, v: 20, length: 5}
	front := &fakeVehicle{x: 15, v: 20, a: 0, length: 5}
	assert.Greater(t, acc.CalcAcc(me, front, 1, 1, 1), idm.CalcAcc(me, front, 1, 1, 1))
}

func TestCAModelsStayOnLattice(t *testing.T) {
	for _, name := range []string{"NSM", "KKW"} {
		m := newModel(t, name)
		me := &fakeVehicle{x: 0, v: 2, length: 1, model: m}
		front := &fakeVehicle{x: 5, v: 1, length: 1}
		for range 50 {
			acc := m.CalcAcc(me, front, 1, 1, 1)
			assert.Equal(t, math.Round(acc), acc, name)
			vNew := me.v + acc
			assert.GreaterOrEqual(t, vNew, 0., name)
			// 不会越过前车：新速度不超过间距
			assert.LessOrEqual(t, vNew, entity.NetDistance(me, front), name)
		}
	}
}

func TestStochasticModelsHaveDeterministicSimpleQuery(t *testing.T) {
	for _, name := range []string{"KRAUSS", "NSM", "KKW", "HDM"} {
		m := newModel(t, name)
		first := m.CalcAccSimple(12, 3, 0)
		for range 20 {
			assert.Equal(t, first, m.CalcAccSimple(12, 3, 0), name)
		}
	}
}

func TestTimeHeadwayMultiplierMakesDriversCautious(t *testing.T) {
	for _, name := range []string{"IDM", "GIPPS", "NEWELL", "OVM_FVDM", "KRAUSS"} {
		m := New(config.LongitudinalModel{Name: name}, 1, nil)
		me := &fakeVehicle{x: 0, v: 10, length: 5, model: m}
		front := &fakeVehicle{x: 25, v: 10, length: 5}
		assert.Less(t, m.CalcAcc(me, front, 1.5, 1, 1), m.CalcAcc(me, front, 1, 1, 1), name)
	}
}

func TestHypotheticalQueriesKeepRandomState(t *testing.T) {
	m := New(config.LongitudinalModel{Name: "HDM"}, 0.5, randengine.New(7))
	me := &fakeVehicle{x: 0, v: 15, length: 5, model: m}
	front := &fakeVehicle{x: 40, v: 10, length: 5}
	left := &fakeVehicle{x: 60, v: 12, length: 5}
	before := m.CalcAccSimple(30, 15, 0)
	hypo := m.CalcAccHypothetical(me, front, 1, 1, 1)
	for range 5 {
		assert.Equal(t, hypo, m.CalcAccHypothetical(me, front, 1, 1, 1))
		m.CalcAccEurHypothetical(10, me, front, left, 1, 1, 1)
	}
	assert.Equal(t, before, m.CalcAccSimple(30, 15, 0))
	// 实际计算每次推进一步估计误差
	m.CalcAcc(me, front, 1, 1, 1)
	assert.NotEqual(t, before, m.CalcAccSimple(30, 15, 0))
}

func TestCalcAccEurPreventsUndertaking(t *testing.T) {
	m := newModel(t, "IDM")
	me := &fakeVehicle{x: 0, v: 25, length: 5, model: m}
	slowLeft := &fakeVehicle{x: 40, v: 10, length: 5}
	own := m.CalcAcc(me, nil, 1, 1, 1)
	eur := m.CalcAccEur(15, me, nil, slowLeft, 1, 1, 1)
	assert.Less(t, eur, own)
	// 低于临界速度时不受影响
	me.v = 10
	slowLeft.v = 5
	assert.Equal(t, m.CalcAcc(me, nil, 1, 1, 1), m.CalcAccEur(15, me, nil, slowLeft, 1, 1, 1))
	// 左侧车辆与本车并排时不受影响
	me.v = 25
	beside := &fakeVehicle{x: 2, v: 10, length: 5}
	assert.Equal(t, own, m.CalcAccEur(15, me, nil, beside, 1, 1, 1))
}

func TestNewellEquilibriumSpeed(t *testing.T) {
	m := newNewell(DefaultNewell)
	assert.Equal(t, 0., m.EquilibriumSpeed(1))
	assert.Equal(t, 8., m.EquilibriumSpeed(10))
	assert.Equal(t, DefaultNewell.V0, m.EquilibriumSpeed(1000))
}
