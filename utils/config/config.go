package config

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const defaultRecorderBuffer = 64

// 元胞自动机模型按1秒一步更新速度与位置
var cellularModels = []string{"NSM", "KKW"}

// RuntimeConfig 运行时配置
// 功能：保存原始配置并提供按标签查找车型等运行时便捷访问
type RuntimeConfig struct {
	All   Config                 // 全部配置
	C     Control                // 全局控制配置
	Types map[string]VehicleType // 车型标签->车型配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 参数：config-原始配置对象
// 返回：运行时配置，配置不合法时返回错误
// 算法说明：
// 1. 校验步长、路段与车型标签，元胞自动机模型要求步长为1秒
// 2. 建立标签索引，检查入流与初始车辆引用的标签是否存在
// 3. 设置默认值
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rc := &RuntimeConfig{
		All: config,
		C:   config.Control,
		Types: lo.SliceToMap(config.VehicleTypes, func(t VehicleType) (string, VehicleType) {
			return t.Label, t
		}),
	}
	if rc.C.RecorderBuffer <= 0 {
		rc.C.RecorderBuffer = defaultRecorderBuffer
	}
	return rc, nil
}

// Validate 检查配置的结构性错误
func (c Config) Validate() error {
	if c.Control.Step.Interval <= 0 {
		return fmt.Errorf("control.step.interval must be positive, got %v", c.Control.Step.Interval)
	}
	if c.Road.Length <= 0 {
		return fmt.Errorf("road.length must be positive, got %v", c.Road.Length)
	}
	if c.Road.Lanes <= 0 {
		return fmt.Errorf("road.lanes must be positive, got %v", c.Road.Lanes)
	}
	for _, tl := range c.Road.TrafficLights {
		d := tl.Durations
		if d.Green < 0 || d.GreenToRed < 0 || d.Red < 0 || d.RedToGreen < 0 {
			return fmt.Errorf("traffic light %d has negative phase duration", tl.ID)
		}
		if d.Green+d.GreenToRed+d.Red+d.RedToGreen <= 0 {
			return fmt.Errorf("traffic light %d has empty cycle", tl.ID)
		}
		if tl.Position < 0 || tl.Position > c.Road.Length {
			return fmt.Errorf("traffic light %d position %v is out of road", tl.ID, tl.Position)
		}
	}
	labels := make(map[string]struct{}, len(c.VehicleTypes))
	for _, t := range c.VehicleTypes {
		if t.Label == "" {
			return fmt.Errorf("vehicle type without label")
		}
		if _, ok := labels[t.Label]; ok {
			return fmt.Errorf("duplicated vehicle type label %s", t.Label)
		}
		if t.Length <= 0 {
			return fmt.Errorf("vehicle type %s: length must be positive", t.Label)
		}
		if model := strings.ToUpper(t.LongitudinalModel.Name); lo.Contains(cellularModels, model) &&
			c.Control.Step.Interval != 1 {
			return fmt.Errorf("vehicle type %s: cellular model %s requires control.step.interval = 1, got %v",
				t.Label, model, c.Control.Step.Interval)
		}
		labels[t.Label] = struct{}{}
	}
	for _, in := range c.Inflow {
		if in.Lane >= c.Road.Lanes {
			return fmt.Errorf("inflow lane %d out of range [0, %d)", in.Lane, c.Road.Lanes)
		}
		if len(in.Types) == 0 {
			return fmt.Errorf("inflow on lane %d has no vehicle types", in.Lane)
		}
		for _, tf := range in.Types {
			if _, ok := labels[tf.Label]; !ok {
				return fmt.Errorf("inflow references unknown vehicle type %s", tf.Label)
			}
		}
	}
	for _, iv := range c.InitialVehicles {
		if _, ok := labels[iv.Label]; !ok {
			return fmt.Errorf("initial vehicle references unknown vehicle type %s", iv.Label)
		}
		if iv.Lane < 0 || iv.Lane >= c.Road.Lanes {
			return fmt.Errorf("initial vehicle lane %d out of range [0, %d)", iv.Lane, c.Road.Lanes)
		}
	}
	return nil
}
