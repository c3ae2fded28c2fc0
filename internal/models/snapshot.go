package models

import "time"

// RawSnapshot 设备推送的一次原始快照（JSON 对象解码结果）
// 任意字段都可能缺失、为 null 或类型不对，由 pipeline.Normalize 负责兜底
type RawSnapshot map[string]any

// 原始快照字段名（与设备推送的 JSON 保持一致）
const (
	FieldTemperature = "temperature"
	FieldPH          = "ph"
	FieldEC          = "ec"
	FieldTDS         = "tds"
	FieldDistance    = "distance"
	FieldMotion      = "motion"
	FieldSound       = "sound"
)

// HasData 是否包含任何字段（空对象视为"还没有数据"）
func (r RawSnapshot) HasData() bool {
	return len(r) > 0
}

// Reported 字段是否出现在快照中；显式的 null 也算上报（显示为默认值）
func (r RawSnapshot) Reported(field string) bool {
	_, ok := r[field]
	return ok
}

// NormalizedReading 归一化后的读数：数值字段均为有限浮点数，motion/sound 为布尔值
type NormalizedReading struct {
	Temperature float64 `json:"temperature"` // °C
	PH          float64 `json:"ph"`
	EC          float64 `json:"ec"`       // μS/cm
	TDS         float64 `json:"tds"`      // ppm
	Distance    float64 `json:"distance"` // cm，传感器到水面的距离
	Motion      bool    `json:"motion"`
	Sound       bool    `json:"sound"`

	// 原始快照中是否上报了该字段（渲染端据此决定是否刷新显示）
	TemperatureReported bool `json:"temperature_reported"`
	DistanceReported    bool `json:"distance_reported"`
}

// SnapshotEnvelope 派生状态的传输包装（websocket / Redis / Postgres）
// ID 与时间戳只在这里出现，DashboardState 本身保持纯函数输出
type SnapshotEnvelope struct {
	SnapshotID string         `json:"snapshot_id"`
	ReceivedAt time.Time      `json:"received_at"`
	Topic      string         `json:"topic,omitempty"`
	Raw        RawSnapshot    `json:"raw"`
	State      DashboardState `json:"state"`
}
