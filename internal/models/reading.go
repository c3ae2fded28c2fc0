package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SensorReading sensor_readings 表的一行（历史记录）
type SensorReading struct {
	SnapshotID        string          `json:"snapshot_id"`
	ReceivedAt        time.Time       `json:"received_at"`
	Temperature       float64         `json:"temperature"`
	PH                float64         `json:"ph"`
	EC                float64         `json:"ec"`
	TDS               float64         `json:"tds"`
	Distance          float64         `json:"distance"`
	WaterLevel        float64         `json:"water_level"`
	Motion            bool            `json:"motion"`
	Sound             bool            `json:"sound"`
	Intruder          bool            `json:"intruder"`
	TemperatureStatus string          `json:"temperature_status"`
	PHStatus          string          `json:"ph_status"`
	Raw               json.RawMessage `json:"raw"`
}

// ReadingFromEnvelope 从派生状态包装构建历史记录
func ReadingFromEnvelope(env *SnapshotEnvelope) (*SensorReading, error) {
	raw, err := json.Marshal(env.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw snapshot: %w", err)
	}

	s := env.State
	return &SensorReading{
		SnapshotID:        env.SnapshotID,
		ReceivedAt:        env.ReceivedAt,
		Temperature:       s.Reading.Temperature,
		PH:                s.Reading.PH,
		EC:                s.Reading.EC,
		TDS:               s.Reading.TDS,
		Distance:          s.Reading.Distance,
		WaterLevel:        s.WaterLevel.Percent,
		Motion:            s.Security.Motion.Detected,
		Sound:             s.Security.Sound.Detected,
		Intruder:          s.Security.Intruder.Detected,
		TemperatureStatus: string(s.Status.Temperature.Status),
		PHStatus:          string(s.Status.PH.Status),
		Raw:               raw,
	}, nil
}
