package predictor

import (
	"errors"
	"strings"

	"hydro-monitor/internal/models"
)

const (
	classHealthy  = "healthy"
	classDiseased = "diseased"

	messageNoData = "No sensor data available yet."
)

// IsHealthy 标签不区分大小写等于 "healthy" 即为健康，其余标签一律视为有病害
func IsHealthy(label string) bool {
	return strings.EqualFold(label, "healthy")
}

// FromPrediction 由预测标签构建结果
func FromPrediction(label string) models.Outcome {
	out := models.Outcome{
		Prediction: label,
		Message:    "Prediction: " + label,
	}
	if IsHealthy(label) {
		out.Kind = models.OutcomeHealthy
		out.Class = classHealthy
	} else {
		out.Kind = models.OutcomeDiseased
		out.Class = classDiseased
	}
	return out
}

// FromError 由调用失败构建结果；ErrNoData 单独归为 no_data
// 错误与病害使用同一显示样式
func FromError(err error) models.Outcome {
	if errors.Is(err, ErrNoData) {
		return NoData()
	}
	return models.Outcome{
		Kind:    models.OutcomeError,
		Message: "Error: " + err.Error(),
		Class:   classDiseased,
	}
}

// NoData 还没有传感器数据
func NoData() models.Outcome {
	return models.Outcome{
		Kind:    models.OutcomeNoData,
		Message: messageNoData,
	}
}
