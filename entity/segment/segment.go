package segment

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/equilibrium"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/lanechange"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/trafficlight"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/vehicle"
	"github.com/tsinghua-fib-lab/microtraffic-go/utils/container"
)

const overlapTolerance = 1e-6 // 净间距小于该值的相反数时视为碰撞（米）

// Segment 多车道路段
// 功能：管理路段上的车道、信号灯与车辆，按固定流程推进一步仿真
// 说明：
// 1. Advance持有写锁，读接口持有读锁，RPC与记录回调只能看到完整的步间状态
// 2. AddVehicle/RemoveVehicle进入缓冲区，在下一次Advance开始时生效
type Segment struct {
	ctx     entity.ITaskContext
	id      int32
	length  float64
	lanes   []*Lane
	byList  map[*entity.VehicleList]*Lane
	lights  *trafficlight.Lights
	factory *vehicle.Factory

	vehicles *container.IncrementalArray[*vehicle.Vehicle]
	fresh    []*vehicle.Vehicle // 上一步之后加入、尚未建立信号灯接近状态的车辆
	freshMtx sync.Mutex

	sources  []*Source
	claims   *lanechange.Claims
	recorder *trafficlight.Recorder
	stats    Statistics

	exitOnCrash bool
	time        float64
	iteration   int64

	mtx sync.RWMutex
}

// New 根据运行时配置创建路段
// 参数：ctx-会话上下文，factory-车辆工厂，record-每步记录回调（可为nil）
// 返回：路段，信号灯或入流配置不合法时返回错误
func New(ctx entity.ITaskContext, factory *vehicle.Factory, record trafficlight.RecordFunc) (*Segment, error) {
	rc := ctx.RuntimeConfig()
	road := rc.All.Road
	if road.Length <= 0 || road.Lanes <= 0 {
		return nil, fmt.Errorf("invalid road %d: length=%v lanes=%d", road.ID, road.Length, road.Lanes)
	}
	lights, err := trafficlight.NewLights(road.TrafficLights)
	if err != nil {
		return nil, err
	}
	s := &Segment{
		ctx:         ctx,
		id:          road.ID,
		length:      road.Length,
		lanes:       make([]*Lane, road.Lanes),
		lights:      lights,
		factory:     factory,
		vehicles:    container.NewIncrementalArray[*vehicle.Vehicle](),
		claims:      lanechange.NewClaims(),
		exitOnCrash: rc.C.ExitOnCrash,
		time:        ctx.Clock().T,
	}
	for i := range s.lanes {
		s.lanes[i] = newLane(road.ID, i, road.Length)
	}
	for i, l := range s.lanes {
		if i > 0 {
			l.side[entity.LEFT] = s.lanes[i-1]
		}
		if i+1 < len(s.lanes) {
			l.side[entity.RIGHT] = s.lanes[i+1]
		}
	}
	s.byList = lo.SliceToMap(s.lanes, func(l *Lane) (*entity.VehicleList, *Lane) {
		return l.vehicles.list, l
	})
	if s.sources, err = newSources(rc.All.Inflow, road.Lanes, factory, rc.C.Seed); err != nil {
		return nil, err
	}
	if record != nil {
		s.recorder = trafficlight.NewRecorder(record, rc.C.RecorderBuffer)
	}
	log.Infof("segment %d: length=%.1fm lanes=%d lights=%d sources=%d",
		s.id, s.length, len(s.lanes), lights.Len(), len(s.sources))
	return s, nil
}

// Close 停止记录分发并等待已投递的记录处理完毕
func (s *Segment) Close() {
	if s.recorder != nil {
		s.recorder.Close()
	}
}

// AddVehicle 将车辆加入路段
// 说明：车辆按车头位置插入其所在车道，下一次Advance开始时生效
func (s *Segment) AddVehicle(v *vehicle.Vehicle) error {
	if v.Lane() < 0 || v.Lane() >= len(s.lanes) {
		return fmt.Errorf("vehicle %d: lane %d out of range [0, %d)", v.ID(), v.Lane(), len(s.lanes))
	}
	if v.FrontPosition() > s.length {
		return fmt.Errorf("vehicle %d: position %.2f beyond segment end %.2f", v.ID(), v.FrontPosition(), s.length)
	}
	if v.Node() != nil {
		return fmt.Errorf("vehicle %d is already on a segment", v.ID())
	}
	node := &entity.VehicleNode{S: v.FrontPosition(), Value: v}
	v.SetNode(node)
	s.lanes[v.Lane()].vehicles.add(node)
	s.vehicles.Add(v)
	s.freshMtx.Lock()
	s.fresh = append(s.fresh, v)
	s.freshMtx.Unlock()
	return nil
}

// RemoveVehicle 将车辆移出路段，下一次Advance开始时生效
func (s *Segment) RemoveVehicle(v *vehicle.Vehicle) error {
	node := v.Node()
	if node == nil || node.Parent() == nil {
		return fmt.Errorf("vehicle %d is not on the segment yet", v.ID())
	}
	s.removeNodes(v)
	s.vehicles.Remove(v)
	return nil
}

func (s *Segment) removeNodes(v *vehicle.Vehicle) {
	s.byList[v.Node().Parent()].vehicles.remove(v.Node())
	if shadow := v.ShadowNode(); shadow != nil {
		s.byList[shadow.Parent()].vehicles.remove(shadow)
		v.SetShadowNode(nil)
	}
}

// Advance 推进一步仿真
// 参数：dt-时间步长，为0时不做任何事，为负时panic
// 算法说明：
// 1. 应用缓冲区，重排车道链表并构建支链，为新车辆建立信号灯接近状态
// 2. 并行计算全部车辆的加速度（只读上一步状态），全部完成后统一提交
// 3. 顺序进行变道决策，同一间隙只允许一辆车并入
// 4. 并行积分速度与位置
// 5. 更新链表：变道车辆在目标车道新建节点、原节点转为影子节点，完成变道的删除影子节点，
// 驶出路段的车辆移出并计入统计，重排并检查碰撞
// 6. 更新信号灯与车辆的信号灯接近状态
// 7. 推进时间与步数，投递记录
func (s *Segment) Advance(dt float64) {
	if dt < 0 {
		log.Panicf("segment %d: negative time step %v", s.id, dt)
	}
	if dt == 0 {
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.prepare()
	s.accelerate(dt)
	changed := s.changeLanes()
	parallel.GoFor(s.vehicles.Data(), func(v *vehicle.Vehicle) { v.Integrate(dt) })
	s.reassign(changed)
	s.lights.Update(dt)
	parallel.GoFor(s.vehicles.Data(), func(v *vehicle.Vehicle) { s.approach(v) })

	s.time += dt
	s.iteration++
	if s.recorder != nil {
		s.recorder.Record(s.time, s.iteration, s.lights.Snapshots())
	}
}

// prepare 应用缓冲区的增删并建立支链
func (s *Segment) prepare() {
	s.vehicles.Prepare()
	s.prepareLanes()
	s.freshMtx.Lock()
	fresh := s.fresh
	s.fresh = nil
	s.freshMtx.Unlock()
	for _, v := range fresh {
		if v.Index() >= 0 {
			s.approach(v)
		}
	}
}

// prepareLanes 重排所有车道并重建支链
// 说明：支链依赖相邻车道的主链，必须等全部车道完成重排后再构建
func (s *Segment) prepareLanes() {
	unsorted := parallel.GoMap(s.lanes, func(l *Lane) int { return l.prepare() })
	for i, n := range unsorted {
		if n > 0 {
			log.Debugf("segment %d lane %d: %d vehicles re-sorted", s.id, i, n)
		}
	}
	parallel.GoFor(s.lanes, func(l *Lane) { l.prepare2() })
}

// accelerate 计算并提交加速度
func (s *Segment) accelerate(dt float64) {
	vehicles := s.vehicles.Data()
	parallel.GoFor(vehicles, func(v *vehicle.Vehicle) {
		node := v.Node()
		var oldLaneFront entity.IVehicle
		if shadow := v.ShadowNode(); shadow != nil {
			oldLaneFront = valueOf(shadow.Prev())
		}
		v.ComputeAcceleration(dt, valueOf(node.Prev()), oldLaneFront, sideFront(node, entity.LEFT))
	})
	parallel.GoFor(vehicles, func(v *vehicle.Vehicle) { v.ApplyAcceleration() })
}

// changeLanes 变道决策
// 返回：本步开始变道的车辆
// 说明：按车辆加入顺序依次决策，保证同一种子下结果可复现
func (s *Segment) changeLanes() []*vehicle.Vehicle {
	if len(s.lanes) < 2 {
		return nil
	}
	s.claims.Reset()
	var changed []*vehicle.Vehicle
	for _, v := range s.vehicles.Data() {
		if !v.CanChangeLane() {
			continue
		}
		node := v.Node()
		nb := &lanechange.Neighborhood{
			Front: valueOf(node.Prev()),
			Back:  valueOf(node.Next()),
		}
		for _, side := range []int{entity.LEFT, entity.RIGHT} {
			target := v.Lane() + entity.SideToLaneOffset(side)
			if target < 0 || target >= len(s.lanes) {
				continue
			}
			nb.Sides[side] = lanechange.Side{
				Available: true,
				Front:     valueOf(node.Extra.Links[side][entity.AFTER]),
				Back:      valueOf(node.Extra.Links[side][entity.BEFORE]),
			}
		}
		alphaT, alphaV0, alphaA := 1., 1., 1.
		if m := v.Memory(); m != nil {
			alphaT, alphaV0, alphaA = m.Alphas()
		}
		d := v.LaneChangeModel().Decide(v, nb, alphaT, alphaV0, alphaA)
		if !d.Change {
			continue
		}
		target := nb.Sides[d.Side]
		if !s.claims.Claim(v, v.Lane()+entity.SideToLaneOffset(d.Side), target.Front, target.Back) {
			continue
		}
		v.StartLaneChange(d)
		changed = append(changed, v)
	}
	return changed
}

// reassign 根据积分结果更新链表
func (s *Segment) reassign(changed []*vehicle.Vehicle) {
	for _, v := range changed {
		// 本步即将驶出路段的车辆不再建立新节点
		if v.RearPosition() > s.length {
			continue
		}
		// 原节点留在原车道作为影子，目标车道新建主节点
		shadow := v.Node()
		shadow.Extra.Shadow = true
		v.SetShadowNode(shadow)
		node := &entity.VehicleNode{S: v.FrontPosition(), Value: v}
		v.SetNode(node)
		s.lanes[v.Lane()].vehicles.add(node)
	}
	for _, v := range s.vehicles.Data() {
		if v.RearPosition() > s.length {
			s.sink(v)
			continue
		}
		v.Node().S = v.FrontPosition()
		if shadow := v.ShadowNode(); shadow != nil {
			if v.LaneChangeCompleted() {
				s.byList[shadow.Parent()].vehicles.remove(shadow)
				v.SetShadowNode(nil)
				v.FinishLaneChange()
			} else {
				shadow.S = v.FrontPosition()
			}
		}
	}
	// 新节点尚未进入链表，先完成增删与重排
	unsorted := parallel.GoMap(s.lanes, func(l *Lane) int { return l.prepare() })
	for i, n := range unsorted {
		if n > 0 {
			log.Errorf("segment %d lane %d: %d vehicles overtook within the lane", s.id, i, n)
		}
	}
	crashes := 0
	for _, l := range s.lanes {
		crashes += l.checkOrder()
	}
	if crashes > 0 && s.exitOnCrash {
		log.Panicf("segment %d: %d collisions at t=%.2f", s.id, crashes, s.time)
	}
	parallel.GoFor(s.lanes, func(l *Lane) { l.prepare2() })
	s.vehicles.Prepare()
}

// sink 车辆驶出路段
func (s *Segment) sink(v *vehicle.Vehicle) {
	s.removeNodes(v)
	s.vehicles.Remove(v)
	if v.Type() != entity.VehicleTypeObstacle {
		s.stats.NumCompletedTrips++
		s.stats.TravelTime += v.TotalTravelTime()
		s.stats.TravelDistance += v.TotalTraveledDistance()
	}
	log.Debugf("segment %d: vehicle %d leaves at t=%.2f", s.id, v.ID(), s.time)
}

// approach 更新车辆对下游最近信号灯的接近决策
func (s *Segment) approach(v *vehicle.Vehicle) {
	if a := v.Approaching(); a != nil {
		a.Update(v, s.lights.NextDownstream(v.FrontPosition()), v.LongitudinalModel())
	}
}

// valueOf 取节点对应的车辆，节点为nil时返回nil接口
func valueOf(node *entity.VehicleNode) entity.IVehicle {
	if node == nil {
		return nil
	}
	return node.Value
}

// sideFront 相邻车道的前车，跳过本车自己的影子节点
func sideFront(node *entity.VehicleNode, side int) entity.IVehicle {
	front := node.Extra.Links[side][entity.AFTER]
	for front != nil && front.Value == node.Value {
		front = front.Prev()
	}
	return valueOf(front)
}

// VehiclesInLane 车道上的车辆，按车头位置从下游到上游排列，不包括影子节点
func (s *Segment) VehiclesInLane(lane int) []*vehicle.Vehicle {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if lane < 0 || lane >= len(s.lanes) {
		return nil
	}
	var res []*vehicle.Vehicle
	for node := s.lanes[lane].FirstVehicle(); node != nil; node = node.Next() {
		if node.Extra.Shadow {
			continue
		}
		res = append(res, node.Value.(*vehicle.Vehicle))
	}
	return res
}

// Vehicles 路段上的全部车辆（按加入顺序）
func (s *Segment) Vehicles() []*vehicle.Vehicle {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return append([]*vehicle.Vehicle(nil), s.vehicles.Data()...)
}

// EachVehicle 在读锁下遍历车辆，fn返回false时停止
func (s *Segment) EachVehicle(fn func(v *vehicle.Vehicle) bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	for _, v := range s.vehicles.Data() {
		if !fn(v) {
			return
		}
	}
}

func (s *Segment) ID() int32 {
	return s.id
}

// Time 仿真时间
func (s *Segment) Time() float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.time
}

// Iteration 已推进的步数
func (s *Segment) Iteration() int64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.iteration
}

func (s *Segment) LaneCount() int {
	return len(s.lanes)
}

func (s *Segment) Length() float64 {
	return s.length
}

// Lane 获取车道，越界时返回nil
func (s *Segment) Lane(i int) *Lane {
	if i < 0 || i >= len(s.lanes) {
		return nil
	}
	return s.lanes[i]
}

// Lights 信号灯集合，调用方需自行保证不与Advance并发
func (s *Segment) Lights() *trafficlight.Lights {
	return s.lights
}

// ReadLights 在读锁下访问信号灯
func (s *Segment) ReadLights(fn func(ls *trafficlight.Lights)) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	fn(s.lights)
}

// Equilibrium 车型的平衡态属性表，模型不支持平衡态时panic
func (s *Segment) Equilibrium(label string) *equilibrium.Properties {
	return s.factory.Equilibrium(label)
}

// Sources 上游入流
func (s *Segment) Sources() []*Source {
	return s.sources
}

// Inflow 按入流配置生成车辆并加入路段
// 返回：本次加入的车辆数
// 说明：在两次Advance之间调用，与AddVehicle一样在下一步开始时生效
func (s *Segment) Inflow(dt float64) int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	n := 0
	for _, src := range s.sources {
		v, err := src.generate(s, dt)
		if err != nil {
			log.Errorf("segment %d inflow on lane %d: %v", s.id, src.lane, err)
			continue
		}
		if v == nil {
			continue
		}
		if err := s.AddVehicle(v); err != nil {
			log.Errorf("segment %d inflow on lane %d: %v", s.id, src.lane, err)
			continue
		}
		n++
	}
	return n
}
