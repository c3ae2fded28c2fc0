// Package pipeline 快照派生流水线
//
// 原始快照 → Normalize → {Classify, EvaluateSecurity, ToWaterLevel} → DashboardState
// 每一步都是无状态纯函数，同一快照多次派生得到相同结果；不在快照之间做任何累积或平滑。
package pipeline

import (
	"fmt"
	"math"

	"hydro-monitor/internal/models"
)

// gaugeSpec 仪表量程与单位
type gaugeSpec struct {
	Max  float64
	Unit string
}

var (
	temperatureGauge = gaugeSpec{Max: 50, Unit: "°C"}
	phGauge          = gaugeSpec{Max: 14, Unit: ""}
	ecGauge          = gaugeSpec{Max: 3000, Unit: " μS/cm"}
	tdsGauge         = gaugeSpec{Max: 2000, Unit: " ppm"}
)

// Pipeline 派生流水线，只持有水箱高度配置
type Pipeline struct {
	tankHeight float64
}

// New 创建流水线；tankHeight 非正时使用默认值
func New(tankHeight float64) *Pipeline {
	if tankHeight <= 0 {
		tankHeight = DefaultTankHeightCM
	}
	return &Pipeline{tankHeight: tankHeight}
}

// TankHeight 当前使用的水箱高度
func (p *Pipeline) TankHeight() float64 {
	return p.tankHeight
}

// Derive 从原始快照计算完整显示状态
func (p *Pipeline) Derive(raw models.RawSnapshot) models.DashboardState {
	reading := Normalize(raw)

	// 两个指标都有规则，ok 恒为 true
	tempStatus, _ := Classify(models.MetricTemperature, reading.Temperature)
	phStatus, _ := Classify(models.MetricPH, reading.PH)

	level := ToWaterLevel(reading.Distance, p.tankHeight)

	return models.DashboardState{
		Reading: reading,
		Gauges: models.Gauges{
			Temperature: gauge(temperatureGauge, reading.Temperature, reading.TemperatureReported),
			PH:          gauge(phGauge, reading.PH, true),
			EC:          gauge(ecGauge, reading.EC, raw.Reported(models.FieldEC)),
			TDS:         gauge(tdsGauge, reading.TDS, raw.Reported(models.FieldTDS)),
		},
		Status: models.StatusSet{
			Temperature: tempStatus,
			PH:          phStatus,
		},
		Security: EvaluateSecurity(reading.Motion, reading.Sound),
		WaterLevel: models.WaterLevel{
			Percent:  level,
			Display:  formatLevel(level),
			Reported: reading.DistanceReported,
		},
	}
}

func gauge(spec gaugeSpec, value float64, reported bool) models.Gauge {
	return models.Gauge{
		Value:     value,
		Max:       spec.Max,
		Remainder: math.Max(0, spec.Max-value),
		Unit:      spec.Unit,
		Display:   fmt.Sprintf("%.1f%s", value, spec.Unit),
		Reported:  reported,
	}
}
