package vehicle

import (
	"math"

	"github.com/tsinghua-fib-lab/microtraffic-go/entity"
	"github.com/tsinghua-fib-lab/microtraffic-go/entity/lanechange"
)

const (
	brakeLightOn  = -0.2 // 加速度低于该值时刹车灯亮（米/秒²）
	brakeLightOff = -0.1 // 加速度连续两步高于该值时刹车灯灭（米/秒²）

	lcInOldLaneRatio = 0.5 // 变道完成度小于该值时，认为还在原车道
)

// ComputeAcceleration 计算本步加速度，结果暂存，由ApplyAcceleration提交
// 参数：dt-时间步长，front-所在车道前车，oldLaneFront-变道中原车道的前车，leftFront-左侧车道前车
// 算法说明：
// 1. 更新记忆效应，得到驾驶员可变性系数
// 2. 跟驰模型加速度（欧洲规则下考虑左侧车道前车）
// 3. 变道前半程同时跟随原车道前车
// 4. 叠加噪声，净间距小于CriticalGap时噪声只能为负
// 5. 叠加信号灯约束，最后限制在最大减速度以内
// 说明：固定障碍物的加速度恒为0
func (v *Vehicle) ComputeAcceleration(dt float64, front, oldLaneFront, leftFront entity.IVehicle) {
	v.accError = 0
	if v.typ == entity.VehicleTypeObstacle || v.model == nil {
		v.accPending = 0
		return
	}
	alphaT, alphaV0, alphaA := 1., 1., 1.
	if v.memory != nil {
		v.memory.Update(dt, v.v, v.model.DesiredSpeed())
		alphaT, alphaV0, alphaA = v.memory.Alphas()
	}
	var acc float64
	if v.lcModel != nil && v.lcModel.EuropeanRules() {
		acc = v.model.CalcAccEur(v.lcModel.CritSpeedEur(), v, front, leftFront, alphaT, alphaV0, alphaA)
	} else {
		acc = v.model.CalcAcc(v, front, alphaT, alphaV0, alphaA)
	}
	if v.lcStatus == entity.LaneChangeChanging && oldLaneFront != nil &&
		v.laneChangeRatio() < lcInOldLaneRatio {
		acc = math.Min(acc, v.model.CalcAccHypothetical(v, oldLaneFront, alphaT, alphaV0, alphaA))
	}
	if v.noise != nil && !v.model.IsCA() {
		v.accError = v.noise.Update(dt, v.rng)
		if entity.NetDistance(v, front) < entity.CriticalGap {
			v.accError = math.Min(v.accError, 0)
		}
		acc += v.accError
	}
	if v.approaching != nil {
		acc = v.approaching.Apply(acc)
	}
	v.accPending = math.Max(acc, -v.maxDecel)
}

// ApplyAcceleration 提交本步加速度并更新刹车灯
func (v *Vehicle) ApplyAcceleration() {
	v.accOld = v.acc
	v.acc = v.accPending
	v.brakeLightPrev = v.brakeLight
	v.updateBrakeLight()
}

// updateBrakeLight 刹车灯滞回逻辑
// 说明：加速度由高于on降到低于on时亮；连续两步高于off或车辆静止时灭
func (v *Vehicle) updateBrakeLight() {
	if v.v <= entity.SpeedEpsilon {
		v.brakeLight = false
		return
	}
	if !v.brakeLight {
		if v.accOld > brakeLightOn && v.acc < brakeLightOn {
			v.brakeLight = true
		}
	} else if v.acc > brakeLightOff && v.accOld > brakeLightOff {
		v.brakeLight = false
	}
}

// Integrate 按加速度推进速度和位置
// 参数：dt-时间步长
// 算法说明：
// 1. 元胞自动机：v' = round(v + a·dt)，x' = round(x + v'·dt)
// 2. Newell：v' = max(v + a·dt, 0)，x' = x + v'·dt；未截断时与x + v·dt + a·dt²相同，截断时车辆不后退
// 3. 连续模型：x' = x + v·dt + a·dt²/2，v' = v + a·dt；速度将变为负数时在停车点停止并将加速度置0
func (v *Vehicle) Integrate(dt float64) {
	if v.typ == entity.VehicleTypeObstacle {
		v.travelTime += dt
		return
	}
	x0 := v.x
	switch {
	case v.model != nil && v.model.IsCA():
		v.v = math.Max(math.Round(v.v+v.acc*dt), 0)
		v.x = math.Round(v.x + v.v*dt)
	case v.model != nil && v.model.ModelName() == entity.ModelNewell:
		vNew := v.v + v.acc*dt
		if vNew < 0 {
			vNew = 0
			v.acc = 0
		}
		v.x += vNew * dt
		v.v = vNew
	default:
		vNew := v.v + v.acc*dt
		if vNew < 0 {
			if v.acc < 0 {
				v.x += -v.v * v.v / (2 * v.acc)
			}
			v.v = 0
			v.acc = 0
		} else {
			v.x += v.v*dt + 0.5*v.acc*dt*dt
			v.v = vNew
		}
	}
	v.traveled += v.x - x0
	v.travelTime += dt
	if v.lcStatus == entity.LaneChangeChanging {
		v.lcTimer += dt
	}
}

// CanChangeLane 是否可以进行变道决策
func (v *Vehicle) CanChangeLane() bool {
	return v.lcModel != nil && v.lcStatus == entity.LaneChangeStable && v.typ != entity.VehicleTypeObstacle
}

// StartLaneChange 开始变道
// 参数：d-变道决策
// 说明：车辆立即归属目标车道，本步加速度改为目标车道的加速度（仍受信号灯与最大减速度约束），刹车灯随之更新
func (v *Vehicle) StartLaneChange(d lanechange.Decision) {
	if !d.Change {
		return
	}
	if v.lcStatus == entity.LaneChangeChanging {
		log.Panicf("vehicle %d starts a lane change while changing", v.id)
	}
	v.laneOld = v.lane
	v.lane += entity.SideToLaneOffset(d.Side)
	v.lcStatus = entity.LaneChangeChanging
	v.lcTimer = 0
	acc := d.Acc
	if v.approaching != nil {
		acc = v.approaching.Apply(acc)
	}
	v.acc = math.Max(acc, -v.maxDecel)
	// 刹车灯按改写后的加速度重新判断
	v.brakeLight = v.brakeLightPrev
	v.updateBrakeLight()
	log.Debugf("vehicle %d starts lane change %d -> %d", v.id, v.laneOld, v.lane)
}

// LaneChangeCompleted 变道时间是否已满
func (v *Vehicle) LaneChangeCompleted() bool {
	return v.lcStatus == entity.LaneChangeChanging && v.lcTimer >= entity.LaneChangeDuration-1e-9
}

// FinishLaneChange 结束变道，回到稳定状态
func (v *Vehicle) FinishLaneChange() {
	v.lcStatus = entity.LaneChangeStable
	v.laneOld = v.lane
	v.lcTimer = 0
}
