package segment

import (
	"context"
	"math"
	"testing"

	"connectrpc.com/connect"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/microtraffic-go/clock"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/vehicle"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/config"
)

const dt = 0.5

type testContext struct {
	clock *clock.Clock
	rc    *config.RuntimeConfig
	ids   *entity.IDAllocator
}

func (c *testContext) Clock() *clock.Clock                  { return c.clock }
func (c *testContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }
func (c *testContext) IDAllocator() *entity.IDAllocator     { return c.ids }

func carType(label, model string) config.VehicleType {
	return config.VehicleType{
		Label:             label,
		Length:            5,
		MaxDeceleration:   9,
		TrafficLightAware: true,
		LongitudinalModel: config.LongitudinalModel{Name: model},
		LaneChange:        &config.LaneChange{Politeness: 0.2, Threshold: 0.2, SafeDeceleration: 4, MinGap: 2},
	}
}

var blockType = config.VehicleType{
	Label:             "block",
	Type:              "obstacle",
	Length:            5,
	LongitudinalModel: config.LongitudinalModel{Name: "IDM"},
}

type fixture struct {
	seg     *Segment
	factory *vehicle.Factory
}

func newFixture(t *testing.T, cfg config.Config, record trafficlight.RecordFunc) *fixture {
	t.Helper()
	if cfg.Control.Step.Interval == 0 {
		cfg.Control.Step = config.ControlStep{Total: 10000, Interval: dt}
	}
	if cfg.Control.Seed == 0 {
		cfg.Control.Seed = 42
	}
	if len(cfg.VehicleTypes) == 0 {
		cfg.VehicleTypes = []config.VehicleType{carType("car", "IDM"), blockType}
	}
	rc, err := config.NewRuntimeConfig(cfg)
	require.NoError(t, err)
	ctx := &testContext{clock: clock.New(rc.C.Step), rc: rc, ids: entity.NewIDAllocator()}
	f := vehicle.NewFactory(ctx)
	seg, err := New(ctx, f, record)
	require.NoError(t, err)
	t.Cleanup(seg.Close)
	return &fixture{seg: seg, factory: f}
}

func (f *fixture) add(t *testing.T, label string, lane int, x, v float64) *vehicle.Vehicle {
	t.Helper()
	veh, err := f.factory.New(label, lane, x, v)
	require.NoError(t, err)
	require.NoError(t, f.seg.AddVehicle(veh))
	return veh
}

func road(length float64, lanes int) config.Road {
	return config.Road{ID: 1, Length: length, Lanes: lanes}
}

// assertOrdered 检查车道链表按车头位置降序且不重叠
func assertOrdered(t *testing.T, seg *Segment) {
	t.Helper()
	for i := range seg.LaneCount() {
		vs := seg.VehiclesInLane(i)
		for j := 1; j < len(vs); j++ {
			require.GreaterOrEqual(t, vs[j-1].FrontPosition(), vs[j].FrontPosition())
			require.GreaterOrEqual(t, entity.NetDistance(vs[j], vs[j-1]), -overlapTolerance,
				"%v overlaps %v", vs[j], vs[j-1])
		}
	}
}

func TestAdvanceZeroAndNegativeStep(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 1)}, nil)
	v := f.add(t, "car", 0, 100, 10)
	f.seg.Advance(0)
	assert.Equal(t, int64(0), f.seg.Iteration())
	assert.Equal(t, 100., v.FrontPosition())
	assert.Empty(t, f.seg.Vehicles())

	assert.Panics(t, func() { f.seg.Advance(-dt) })

	f.seg.Advance(dt)
	assert.Equal(t, int64(1), f.seg.Iteration())
	assert.InDelta(t, dt, f.seg.Time(), 1e-12)
	assert.Greater(t, v.FrontPosition(), 100.)
	assert.Len(t, f.seg.Vehicles(), 1)
}

func TestAddAndRemoveVehicle(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 2)}, nil)
	bad, err := f.factory.New("car", 3, 10, 0)
	require.NoError(t, err)
	assert.Error(t, f.seg.AddVehicle(bad))
	far, err := f.factory.New("car", 0, 1200, 0)
	require.NoError(t, err)
	assert.Error(t, f.seg.AddVehicle(far))

	v := f.add(t, "block", 1, 100, 0)
	assert.Error(t, f.seg.AddVehicle(v))
	assert.Error(t, f.seg.RemoveVehicle(v))

	f.seg.Advance(dt)
	require.Equal(t, []*vehicle.Vehicle{v}, f.seg.VehiclesInLane(1))
	require.NoError(t, f.seg.RemoveVehicle(v))
	f.seg.Advance(dt)
	assert.Empty(t, f.seg.VehiclesInLane(1))
	assert.Empty(t, f.seg.Vehicles())
	// 主动移除的车辆不计入驶出统计
	assert.Equal(t, int32(0), f.seg.Statistics().NumCompletedTrips)
}

func TestSideLinks(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 3)}, nil)
	a := f.add(t, "block", 0, 100, 0)
	b := f.add(t, "block", 0, 50, 0)
	c := f.add(t, "block", 1, 80, 0)
	d := f.add(t, "block", 1, 50, 0)
	f.seg.Advance(dt)

	links := func(v *vehicle.Vehicle, side, dir int) entity.IVehicle {
		return valueOf(v.Node().Extra.Links[side][dir])
	}
	assert.Equal(t, entity.IVehicle(a), links(c, entity.LEFT, entity.AFTER))
	assert.Equal(t, entity.IVehicle(b), links(c, entity.LEFT, entity.BEFORE))
	// 位置相同的车辆视为前车
	assert.Equal(t, entity.IVehicle(b), links(d, entity.LEFT, entity.AFTER))
	assert.Nil(t, links(d, entity.LEFT, entity.BEFORE))
	assert.Nil(t, links(a, entity.RIGHT, entity.AFTER))
	assert.Equal(t, entity.IVehicle(c), links(a, entity.RIGHT, entity.BEFORE))
	assert.Equal(t, entity.IVehicle(d), links(b, entity.RIGHT, entity.AFTER))
	// 最右侧车道为空
	assert.Nil(t, links(c, entity.RIGHT, entity.AFTER))
	assert.Nil(t, links(c, entity.RIGHT, entity.BEFORE))
	assert.Nil(t, links(a, entity.LEFT, entity.AFTER))
}

func TestOrderingIsPreserved(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 1)}, nil)
	for i := range 20 {
		f.add(t, "car", 0, 600-30*float64(i), 15)
	}
	for range 200 {
		f.seg.Advance(dt)
		assertOrdered(t, f.seg)
	}
	stats := f.seg.Statistics()
	assert.Equal(t, 20, int(stats.NumCompletedTrips)+len(f.seg.Vehicles()))
	assert.Positive(t, stats.NumCompletedTrips)
	for _, v := range f.seg.Vehicles() {
		assert.GreaterOrEqual(t, v.V(), 0.)
		assert.LessOrEqual(t, v.RearPosition(), f.seg.Length())
	}
}

func TestStopsAtRedLight(t *testing.T) {
	cfg := config.Config{Road: road(1000, 1)}
	cfg.Road.TrafficLights = []config.TrafficLight{{
		ID: 7, Position: 500, InitialPhase: "red",
		Durations: config.LightDurations{Green: 30, GreenToRed: 3, Red: 200, RedToGreen: 2},
	}}
	f := newFixture(t, cfg, nil)
	first := f.add(t, "car", 0, 300, 15)
	second := f.add(t, "car", 0, 250, 15)
	for range 120 {
		f.seg.Advance(dt)
		require.Less(t, first.FrontPosition(), 500.)
		assertOrdered(t, f.seg)
	}
	assert.Less(t, first.V(), 1.)
	assert.Less(t, second.V(), 1.)
	assert.Equal(t, int32(7), first.Approaching().LightID())
	assert.InDelta(t, 0, first.Approaching().Distance(), 3)
	// 后车跟随前车停下，不直接响应信号灯
	assert.Less(t, second.FrontPosition(), first.RearPosition())
}

func TestLaneChangeKeepsShadowUntilCompleted(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 2)}, nil)
	block := f.add(t, "block", 1, 100, 0)
	car := f.add(t, "car", 1, 40, 15)

	f.seg.Advance(dt)
	require.Equal(t, entity.LaneChangeChanging, car.LaneChangeStatus())
	assert.Equal(t, 0, car.Lane())
	assert.Equal(t, 1, car.LaneOld())
	require.NotNil(t, car.ShadowNode())
	assert.True(t, car.ShadowNode().Extra.Shadow)
	assert.Equal(t, []*vehicle.Vehicle{car}, f.seg.VehiclesInLane(0))
	// 影子节点占据原车道，但不作为车辆出现在原车道中
	assert.Equal(t, []*vehicle.Vehicle{block}, f.seg.VehiclesInLane(1))
	assert.Equal(t, 2, f.seg.Lane(1).Vehicles().Len())

	for range 8 {
		f.seg.Advance(dt)
		require.NotNil(t, car.ShadowNode())
		assert.Equal(t, car.FrontPosition(), car.ShadowNode().S)
	}
	f.seg.Advance(dt)
	assert.Nil(t, car.ShadowNode())
	assert.Equal(t, entity.LaneChangeStable, car.LaneChangeStatus())
	assert.Equal(t, 1, f.seg.Lane(1).Vehicles().Len())
	assert.Equal(t, 0., car.ContinuousLane())

	// 变道后不再受障碍物影响，最终越过障碍物
	for range 40 {
		f.seg.Advance(dt)
		assertOrdered(t, f.seg)
	}
	assert.Greater(t, car.RearPosition(), block.FrontPosition())
	assert.Equal(t, 0, car.Lane())
}

func TestSinkAndStatistics(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(100, 1)}, nil)
	f.add(t, "block", 0, 20, 0)
	car := f.add(t, "car", 0, 90, 10)
	for range 10 {
		f.seg.Advance(dt)
	}
	assert.Equal(t, -1, car.Index())
	require.Len(t, f.seg.Vehicles(), 1)
	stats := f.seg.Statistics()
	assert.Equal(t, int32(1), stats.NumCompletedTrips)
	assert.Greater(t, stats.TravelDistance, 15.)
	assert.InDelta(t, car.TotalTravelTime(), stats.TravelTime, 1e-9)
	assert.Equal(t, car.TotalTraveledDistance(), stats.TravelDistance)

	res, err := NewService(f.seg).GetGlobalStatistics(
		context.Background(), connect.NewRequest(&personv2.GetGlobalStatisticsRequest{}),
	)
	require.NoError(t, err)
	assert.Equal(t, stats.NumCompletedTrips, res.Msg.NumCompletedTrips)
	assert.Equal(t, stats.TravelTime, res.Msg.RunningTotalTravelTime)
	assert.Equal(t, stats.TravelDistance, res.Msg.RunningTotalTravelDistance)
}

func TestRunningStatisticsIncludeVehiclesOnRoad(t *testing.T) {
	f := newFixture(t, config.Config{Road: road(1000, 1)}, nil)
	car := f.add(t, "car", 0, 10, 10)
	for range 4 {
		f.seg.Advance(dt)
	}
	stats := f.seg.Statistics()
	assert.Equal(t, int32(0), stats.NumCompletedTrips)
	assert.InDelta(t, 4*dt, stats.TravelTime, 1e-12)
	assert.InDelta(t, car.FrontPosition()-10, stats.TravelDistance, 1e-9)
}

func TestSourceInsertsWithEquilibriumGap(t *testing.T) {
	cfg := config.Config{
		Road:   road(3000, 1),
		Inflow: []config.Inflow{{Lane: 0, Flow: 0.25, Types: []config.TypeFraction{{Label: "car", Fraction: 1}}}},
	}
	f := newFixture(t, cfg, nil)
	require.Len(t, f.seg.Sources(), 1)
	eq := f.seg.Equilibrium("car")

	inserted := 0
	for i := range 240 {
		n := f.seg.Inflow(dt)
		if n > 0 && inserted == 0 {
			// 首辆车在空车道上以平衡速度驶入，车尾位于路段起点
			assert.Equal(t, 7, i)
			v := f.seg.fresh[0]
			assert.Equal(t, eq.VEq(eq.RhoFree(0.25)), v.V())
			assert.Equal(t, 5., v.FrontPosition())
		}
		inserted += n
		f.seg.Advance(dt)
		assertOrdered(t, f.seg)
	}
	assert.GreaterOrEqual(t, inserted, 25)
	assert.LessOrEqual(t, inserted, 30)
	vs := f.seg.VehiclesInLane(0)
	require.Len(t, vs, inserted)
	for j := 1; j < len(vs); j++ {
		assert.Greater(t, entity.NetDistance(vs[j], vs[j-1]), 0.)
	}
}

func TestSourceFlowConfiguration(t *testing.T) {
	cfg := config.Config{
		Road: road(1000, 3),
		Inflow: []config.Inflow{
			{Lane: -1, Flow: 0.1, Types: []config.TypeFraction{{Label: "car", Fraction: 1}}},
			{Lane: 2, UseMaxFlow: true, Types: []config.TypeFraction{{Label: "car", Fraction: 1}}},
		},
	}
	f := newFixture(t, cfg, nil)
	sources := f.seg.Sources()
	require.Len(t, sources, 4)
	for i := range 3 {
		assert.Equal(t, i, sources[i].Lane())
		assert.Equal(t, 0.1, sources[i].Flow())
	}
	assert.Equal(t, 2, sources[3].Lane())
	assert.Equal(t, f.seg.Equilibrium("car").QMax(), sources[3].Flow())

	// 累计量不足1时不插入
	assert.Equal(t, 0, f.seg.Inflow(dt))
	assert.InDelta(t, 0.05, sources[0].Pending(), 1e-12)
}

func TestSourceWaitsForGap(t *testing.T) {
	cfg := config.Config{
		Road:   road(1000, 1),
		Inflow: []config.Inflow{{Lane: 0, Flow: 2, Types: []config.TypeFraction{{Label: "car", Fraction: 1}}}},
	}
	f := newFixture(t, cfg, nil)
	f.add(t, "block", 0, 12, 0)
	f.seg.Advance(dt)
	for range 10 {
		assert.Equal(t, 0, f.seg.Inflow(dt))
		f.seg.Advance(dt)
	}
	assert.Greater(t, f.seg.Sources()[0].Pending(), 1.)
	assert.Len(t, f.seg.Vehicles(), 1)
}

func TestRecorderReceivesEveryStep(t *testing.T) {
	cfg := config.Config{Road: road(1000, 1)}
	cfg.Road.TrafficLights = []config.TrafficLight{{
		ID: 1, Position: 500, Durations: config.LightDurations{Green: 10, Red: 10},
	}}
	ch := make(chan int64, 16)
	f := newFixture(t, cfg, func(simulationTime float64, iteration int64, lights []trafficlight.LightSnapshot) {
		assert.InDelta(t, float64(iteration)*dt, simulationTime, 1e-9)
		assert.Len(t, lights, 1)
		ch <- iteration
	})
	for range 3 {
		f.seg.Advance(dt)
	}
	f.seg.Close()
	close(ch)
	var got []int64
	for it := range ch {
		got = append(got, it)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestCollisionHandling(t *testing.T) {
	newOverlapping := func(exit bool) *fixture {
		cfg := config.Config{Road: road(1000, 1)}
		cfg.Control.ExitOnCrash = exit
		f := newFixture(t, cfg, nil)
		f.add(t, "block", 0, 100, 0)
		f.add(t, "block", 0, 102, 0)
		return f
	}
	assert.NotPanics(t, func() { newOverlapping(false).seg.Advance(dt) })
	assert.Panics(t, func() { newOverlapping(true).seg.Advance(dt) })
}

func TestStochasticRunIsReproducible(t *testing.T) {
	run := func() []float64 {
		cfg := config.Config{
			Road:         road(2000, 2),
			VehicleTypes: []config.VehicleType{carType("car", "KRAUSS"), carType("truck", "IDM")},
			Inflow: []config.Inflow{{Lane: -1, Flow: 0.3, Types: []config.TypeFraction{
				{Label: "car", Fraction: 0.7}, {Label: "truck", Fraction: 0.3},
			}}},
		}
		f := newFixture(t, cfg, nil)
		for range 200 {
			f.seg.Inflow(dt)
			f.seg.Advance(dt)
		}
		var xs []float64
		f.seg.EachVehicle(func(v *vehicle.Vehicle) bool {
			xs = append(xs, v.FrontPosition(), v.V(), float64(v.Lane()))
			return true
		})
		return xs
	}
	a := run()
	require.NotEmpty(t, a)
	assert.Equal(t, a, run())
	for _, x := range a {
		assert.False(t, math.IsNaN(x))
	}
}
