package predictor

import (
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/pipeline"
)

// 生长预测特征缺省值（字段缺失、null、非数值或为 0 时使用）
const (
	DefaultPH   = 6.5
	DefaultTemp = 25.0
	DefaultTDS  = 140.0
	DefaultEC   = 2.0
)

// GrowthFeaturesFrom 从原始快照提取生长预测特征，每个字段独立缺省
func GrowthFeaturesFrom(raw models.RawSnapshot) models.GrowthFeatures {
	return models.GrowthFeatures{
		PH:   pipeline.Coalesce(raw[models.FieldPH], DefaultPH),
		Temp: pipeline.Coalesce(raw[models.FieldTemperature], DefaultTemp),
		TDS:  pipeline.Coalesce(raw[models.FieldTDS], DefaultTDS),
		EC:   pipeline.Coalesce(raw[models.FieldEC], DefaultEC),
	}
}
