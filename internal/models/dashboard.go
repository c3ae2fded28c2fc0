package models

// Metric 仪表指标
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricPH          Metric = "ph"
	MetricEC          Metric = "ec"
	MetricTDS         Metric = "tds"
)

// Status 分类状态
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Classification 指标分类结果
type Classification struct {
	Status Status `json:"status"`
	Label  string `json:"label"` // "Optimal", "Too Low", "Too High", "Too Acidic", "Too Alkaline"
}

// Gauge 仪表显示值
type Gauge struct {
	Value     float64 `json:"value"`
	Max       float64 `json:"max"`
	Remainder float64 `json:"remainder"` // 半圆仪表剩余部分，max - value，不小于 0
	Unit      string  `json:"unit"`
	Display   string  `json:"display"` // 一位小数 + 单位，如 "21.5°C"
	Reported  bool    `json:"reported"`
}

// Gauges 四个仪表
type Gauges struct {
	Temperature Gauge `json:"temperature"`
	PH          Gauge `json:"ph"`
	EC          Gauge `json:"ec"`
	TDS         Gauge `json:"tds"`
}

// StatusSet 有分类规则的指标（ec/tds 没有规则，不出现在这里）
type StatusSet struct {
	Temperature Classification `json:"temperature"`
	PH          Classification `json:"ph"`
}

// SecurityIndicator 单个安防状态
type SecurityIndicator struct {
	Detected  bool   `json:"detected"`
	Text      string `json:"text"`      // "YES" / "NO"
	Level     string `json:"level"`     // "danger" / "safe"
	Bar       int    `json:"bar"`       // 指示条百分比：检测到 100，未检测到 10
	Indicator string `json:"indicator"` // 卡片样式："alert"（入侵）/ "active"（运动、声音）/ ""
}

// SecurityState 运动、声音、入侵三个状态；入侵 = 运动 AND 声音
type SecurityState struct {
	Motion   SecurityIndicator `json:"motion"`
	Sound    SecurityIndicator `json:"sound"`
	Intruder SecurityIndicator `json:"intruder"`
}

// WaterLevel 水位百分比 [0,100]
type WaterLevel struct {
	Percent  float64 `json:"percent"`
	Display  string  `json:"display"` // 取整百分比，如 "75%"
	Reported bool    `json:"reported"`
}

// DashboardState 一次快照派生出的完整显示状态
type DashboardState struct {
	Reading    NormalizedReading `json:"reading"`
	Gauges     Gauges            `json:"gauges"`
	Status     StatusSet         `json:"status"`
	Security   SecurityState     `json:"security"`
	WaterLevel WaterLevel        `json:"water_level"`
}
