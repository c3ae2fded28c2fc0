package pipeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"hydro-monitor/internal/models"
)

// Normalize 将原始快照归一化为完整读数，永不失败
// 缺失、null、非数值、NaN、Inf 一律取 0；ph 额外把 0 视为缺失（值仍为 0）
// motion/sound 只有严格等于字符串 "Yes" 时为 true
func Normalize(raw models.RawSnapshot) models.NormalizedReading {
	return models.NormalizedReading{
		Temperature:         toFloat(raw[models.FieldTemperature]),
		PH:                  Coalesce(raw[models.FieldPH], 0),
		EC:                  toFloat(raw[models.FieldEC]),
		TDS:                 toFloat(raw[models.FieldTDS]),
		Distance:            toFloat(raw[models.FieldDistance]),
		Motion:              isYes(raw[models.FieldMotion]),
		Sound:               isYes(raw[models.FieldSound]),
		TemperatureReported: raw.Reported(models.FieldTemperature),
		DistanceReported:    raw.Reported(models.FieldDistance),
	}
}

// toFloat 数值强转，失败返回 0
func toFloat(v any) float64 {
	f, ok := parseFloat(v)
	if !ok {
		return 0
	}
	return f
}

// Coalesce 假值合并：缺失、null、无法解析、NaN、0 都返回 def
func Coalesce(v any, def float64) float64 {
	f, ok := parseFloat(v)
	if !ok || f == 0 {
		return def
	}
	return f
}

func parseFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isYes(v any) bool {
	s, ok := v.(string)
	return ok && s == "Yes"
}
