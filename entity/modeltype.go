package entity

// ModelName 跟驰模型名称
type ModelName string

const (
	ModelIDM     ModelName = "IDM"      // 智能驾驶模型
	ModelACC     ModelName = "ACC"      // 自适应巡航模型
	ModelGipps   ModelName = "GIPPS"    // Gipps模型
	ModelNewell  ModelName = "NEWELL"   // Newell模型
	ModelKrauss  ModelName = "KRAUSS"   // Krauss模型
	ModelOVMFVDM ModelName = "OVM_FVDM" // 优化速度/全速度差模型
	ModelNSM     ModelName = "NSM"      // Nagel-Schreckenberg元胞自动机
	ModelKKW     ModelName = "KKW"      // Kerner-Klenov-Wolf元胞自动机
	ModelHDM     ModelName = "HDM"      // 人类驾驶员模型
)

// ILongitudinalModel 跟驰模型接口
// 功能：根据本车、前车与驾驶员可变性系数计算纵向加速度
// 说明：alphaT/alphaV0/alphaA分别缩放车头时距、期望速度和最大加速度，不需要时传1
type ILongitudinalModel interface {
	// CalcAcc 计算跟随front（nil表示自由流）的加速度
	CalcAcc(me, front IVehicle, alphaT, alphaV0, alphaA float64) float64
	// CalcAccEur 欧洲规则下的加速度，避免从右侧超越左侧车道的慢车
	CalcAccEur(vCritEur float64, me, front, leftFront IVehicle, alphaT, alphaV0, alphaA float64) float64
	// CalcAccHypothetical 与CalcAcc相同，但不推进模型的随机状态，用于变道等假设性评估
	CalcAccHypothetical(me, front IVehicle, alphaT, alphaV0, alphaA float64) float64
	// CalcAccEurHypothetical 欧洲规则下的假设性加速度，不推进模型的随机状态
	CalcAccEurHypothetical(vCritEur float64, me, front, leftFront IVehicle, alphaT, alphaV0, alphaA float64) float64
	// CalcAccSimple 给定净间距、速度和接近速度的确定性加速度
	CalcAccSimple(s, v, dv float64) float64

	ModelName() ModelName
	IsCA() bool                   // 是否为元胞自动机模型（整数化运动学）
	DesiredSpeed() float64        // 期望速度
	MinGap() float64              // 静止最小间距
	ComfortDeceleration() float64 // 舒适减速度（正数）
}
