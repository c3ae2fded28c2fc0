package pipeline

import "hydro-monitor/internal/models"

const (
	barDetected = 100
	barClear    = 10 // 未检测到时保留一截，指示条不至于消失
)

// EvaluateSecurity 计算运动、声音、入侵三个状态
// 入侵需要运动与声音同时检测到
func EvaluateSecurity(motion, sound bool) models.SecurityState {
	return models.SecurityState{
		Motion:   indicator(motion, "active"),
		Sound:    indicator(sound, "active"),
		Intruder: indicator(motion && sound, "alert"),
	}
}

func indicator(detected bool, activeClass string) models.SecurityIndicator {
	if detected {
		return models.SecurityIndicator{
			Detected:  true,
			Text:      "YES",
			Level:     "danger",
			Bar:       barDetected,
			Indicator: activeClass,
		}
	}
	return models.SecurityIndicator{
		Text:  "NO",
		Level: "safe",
		Bar:   barClear,
	}
}
