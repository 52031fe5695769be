package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
// 说明：包含时间控制、随机种子、异常处理与输出回调缓冲等配置
type Control struct {
	Step           ControlStep `yaml:"step"`
	Seed           uint64      `yaml:"seed,omitempty"`            // 随机种子
	ExitOnCrash    bool        `yaml:"exit_on_crash,omitempty"`   // 检测到车辆顺序错乱或碰撞时终止运行
	RecorderBuffer int         `yaml:"recorder_buffer,omitempty"` // 记录回调的异步队列长度，默认64
}

// LightDurations 信号灯各相位时长（秒）
type LightDurations struct {
	Green      float64 `yaml:"green"`
	GreenToRed float64 `yaml:"green_to_red"`
	Red        float64 `yaml:"red"`
	RedToGreen float64 `yaml:"red_to_green"`
}

// TrafficLight 信号灯配置
type TrafficLight struct {
	ID           int32          `yaml:"id"`
	Position     float64        `yaml:"position"`                // 停车线位置（米）
	InitialPhase string         `yaml:"initial_phase,omitempty"` // green/green_to_red/red/red_to_green，默认green
	Offset       float64        `yaml:"offset,omitempty"`        // 初始相位已经经过的时间（秒）
	Durations    LightDurations `yaml:"durations"`
}

// Road 路段配置
type Road struct {
	ID            int32          `yaml:"id"`
	Length        float64        `yaml:"length"` // 路段长度（米）
	Lanes         int            `yaml:"lanes"`  // 车道数，0号为最左侧车道
	TrafficLights []TrafficLight `yaml:"traffic_lights,omitempty"`
}

// IDM 智能驾驶模型参数
type IDM struct {
	V0    float64 `yaml:"v0"`              // 期望速度
	T     float64 `yaml:"t"`               // 安全车头时距
	S0    float64 `yaml:"s0"`              // 静止最小间距
	S1    float64 `yaml:"s1,omitempty"`    // 速度相关的间距项
	A     float64 `yaml:"a"`               // 最大加速度
	B     float64 `yaml:"b"`               // 舒适减速度
	Delta float64 `yaml:"delta,omitempty"` // 加速度指数，默认4
}

// ACC 自适应巡航模型参数（IDM参数+冷静系数）
type ACC struct {
	IDM      `yaml:",inline"`
	Coolness float64 `yaml:"coolness"`
}

// Gipps Gipps模型参数
type Gipps struct {
	V0 float64 `yaml:"v0"`
	T  float64 `yaml:"t"` // 反应时间，通常等于仿真步长
	S0 float64 `yaml:"s0"`
	A  float64 `yaml:"a"`
	B  float64 `yaml:"b"`
}

// Newell Newell模型参数
type Newell struct {
	V0 float64 `yaml:"v0"`
	T  float64 `yaml:"t"`
	S0 float64 `yaml:"s0"`
}

// Krauss Krauss模型参数
type Krauss struct {
	V0      float64 `yaml:"v0"`
	T       float64 `yaml:"t"`
	S0      float64 `yaml:"s0"`
	A       float64 `yaml:"a"`
	B       float64 `yaml:"b"`
	Epsilon float64 `yaml:"epsilon"` // 随机减速强度，取值[0,1]
}

// OVMFVDM 优化速度/全速度差模型参数
type OVMFVDM struct {
	V0              float64 `yaml:"v0"`
	Tau             float64 `yaml:"tau"`              // 速度松弛时间
	S0              float64 `yaml:"s0"`               // 最小间距
	TransitionWidth float64 `yaml:"transition_width"` // 优化速度函数的过渡宽度
	Beta            float64 `yaml:"beta"`             // 形状参数
	Lambda          float64 `yaml:"lambda,omitempty"`  // 速度差敏感系数，0为OVM
	Variant         string  `yaml:"variant,omitempty"` // tanh/triangular，默认tanh
}

// NSM Nagel-Schreckenberg元胞自动机参数，长度单位为元胞，速度单位为元胞/步
type NSM struct {
	V0         float64 `yaml:"v0"`
	PSlowdown  float64 `yaml:"p_slowdown"`
	PSlowStart float64 `yaml:"p_slow_start,omitempty"` // 静止起步的随机减速概率，默认同p_slowdown
}

// KKW Kerner-Klenov-Wolf元胞自动机参数
type KKW struct {
	V0  float64 `yaml:"v0"`
	K   float64 `yaml:"k"`   // 同步距离系数
	PB0 float64 `yaml:"pb0"` // 静止时的随机减速概率
	PB1 float64 `yaml:"pb1"` // 行驶时的随机减速概率
	PA1 float64 `yaml:"pa1"` // 低速时的随机加速概率
	PA2 float64 `yaml:"pa2"` // 高速时的随机加速概率
	VP  float64 `yaml:"vp"`  // 随机加速概率的速度分界
}

// HDM 人类驾驶员模型参数（IDM参数+估计误差）
type HDM struct {
	IDM           `yaml:",inline"`
	TauError      float64 `yaml:"tau_error"`       // 估计误差的相关时间
	VarGap        float64 `yaml:"var_gap"`         // 间距估计的对数变异系数
	RelErrorSpeed float64 `yaml:"rel_error_speed"` // 速度差估计的相对误差
	DT            float64 `yaml:"dt,omitempty"`    // 误差过程更新步长，默认等于仿真步长
}

// LongitudinalModel 跟驰模型配置，Name选择模型，对应的参数块可选（缺省使用默认参数）
type LongitudinalModel struct {
	Name    string   `yaml:"name"`
	IDM     *IDM     `yaml:"idm,omitempty"`
	ACC     *ACC     `yaml:"acc,omitempty"`
	Gipps   *Gipps   `yaml:"gipps,omitempty"`
	Newell  *Newell  `yaml:"newell,omitempty"`
	Krauss  *Krauss  `yaml:"krauss,omitempty"`
	OVMFVDM *OVMFVDM `yaml:"ovm_fvdm,omitempty"`
	NSM     *NSM     `yaml:"nsm,omitempty"`
	KKW     *KKW     `yaml:"kkw,omitempty"`
	HDM     *HDM     `yaml:"hdm,omitempty"`
}

// LaneChange MOBIL变道模型配置
type LaneChange struct {
	Politeness       float64 `yaml:"politeness"`
	Threshold        float64 `yaml:"threshold"`
	BiasRight        float64 `yaml:"bias_right,omitempty"`
	SafeDeceleration float64 `yaml:"safe_deceleration"`
	MinGap           float64 `yaml:"min_gap"`
	EuropeanRules    bool    `yaml:"european_rules,omitempty"`
	CritSpeedEur     float64 `yaml:"crit_speed_eur,omitempty"`
}

// Memory 记忆效应配置
type Memory struct {
	Tau        float64 `yaml:"tau"`
	AlphaAMin  float64 `yaml:"alpha_a_min"`
	AlphaV0Min float64 `yaml:"alpha_v0_min"`
	AlphaTMax  float64 `yaml:"alpha_t_max"`
}

// Noise 加速度噪声配置
type Noise struct {
	Tau           float64 `yaml:"tau"`
	FluctStrength float64 `yaml:"fluct_strength"`
}

// VehicleType 车型配置
type VehicleType struct {
	Label             string            `yaml:"label"`
	Type              string            `yaml:"type,omitempty"` // vehicle/obstacle/floating_car，默认vehicle
	Length            float64           `yaml:"length"`
	Width             float64           `yaml:"width,omitempty"`
	MaxDeceleration   float64           `yaml:"max_deceleration"`
	TrafficLightAware bool              `yaml:"traffic_light_aware,omitempty"`
	ViewDistance      float64           `yaml:"view_distance,omitempty"` // 信号灯最小感知距离，默认50米
	LongitudinalModel LongitudinalModel `yaml:"longitudinal_model"`
	LaneChange        *LaneChange       `yaml:"lane_change,omitempty"`
	Memory            *Memory           `yaml:"memory,omitempty"`
	Noise             *Noise            `yaml:"noise,omitempty"`
}

// TypeFraction 入流车型比例
type TypeFraction struct {
	Label    string  `yaml:"label"`
	Fraction float64 `yaml:"fraction"`
}

// Inflow 上游入流配置
type Inflow struct {
	Lane       int            `yaml:"lane"`                   // 车道，-1表示所有车道
	Flow       float64        `yaml:"flow,omitempty"`         // 每车道流量（辆/秒）
	UseMaxFlow bool           `yaml:"use_max_flow,omitempty"` // 使用首个车型平衡态的最大流量
	Types      []TypeFraction `yaml:"types"`
}

// InitialVehicle 初始车辆
type InitialVehicle struct {
	Label    string  `yaml:"label"`
	Lane     int     `yaml:"lane"`
	Position float64 `yaml:"position"` // 车头位置
	Speed    float64 `yaml:"speed"`
}

// Config YAML配置文件的根结构
type Config struct {
	Control         Control          `yaml:"control"`
	Road            Road             `yaml:"road"`
	VehicleTypes    []VehicleType    `yaml:"vehicle_types"`
	Inflow          []Inflow         `yaml:"inflow,omitempty"`
	InitialVehicles []InitialVehicle `yaml:"initial_vehicles,omitempty"`
}
