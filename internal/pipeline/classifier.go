package pipeline

import "hydro-monitor/internal/models"

const labelOptimal = "Optimal"

// thresholdRule 单指标阈值规则：value < Low 或 value > High 时越界，边界值本身属于 optimal
type thresholdRule struct {
	Low        float64
	LowStatus  models.Status
	LowLabel   string
	High       float64
	HighStatus models.Status
	HighLabel  string
}

// thresholdRules 静态规则表
// ec/tds 只显示数值，没有分类规则，不要在这里补
var thresholdRules = map[models.Metric]thresholdRule{
	models.MetricTemperature: {
		Low:        18,
		LowStatus:  models.StatusCritical,
		LowLabel:   "Too Low",
		High:       26,
		HighStatus: models.StatusWarning, // 过高只算 warning
		HighLabel:  "Too High",
	},
	models.MetricPH: {
		Low:        5.5,
		LowStatus:  models.StatusWarning,
		LowLabel:   "Too Acidic",
		High:       6.5,
		HighStatus: models.StatusWarning,
		HighLabel:  "Too Alkaline",
	},
}

// Classify 按静态规则表给指标分类；没有规则的指标返回 ok=false
func Classify(metric models.Metric, value float64) (models.Classification, bool) {
	rule, ok := thresholdRules[metric]
	if !ok {
		return models.Classification{}, false
	}

	switch {
	case value < rule.Low:
		return models.Classification{Status: rule.LowStatus, Label: rule.LowLabel}, true
	case value > rule.High:
		return models.Classification{Status: rule.HighStatus, Label: rule.HighLabel}, true
	default:
		return models.Classification{Status: models.StatusOptimal, Label: labelOptimal}, true
	}
}
