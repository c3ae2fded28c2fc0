package models

// GrowthFeatures 生长预测输入特征（字段名与预测服务约定一致）
type GrowthFeatures struct {
	PH   float64 `json:"ph"`
	Temp float64 `json:"temp"`
	TDS  float64 `json:"tds"`
	EC   float64 `json:"ec"`
}

// OutcomeKind 预测结果类别
type OutcomeKind string

const (
	OutcomeHealthy  OutcomeKind = "healthy"
	OutcomeDiseased OutcomeKind = "diseased"
	OutcomeError    OutcomeKind = "error"
	OutcomeNoData   OutcomeKind = "no_data"
)

// Outcome 用户可见的预测结果
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Prediction string      `json:"prediction,omitempty"` // 预测服务返回的原始标签
	Message    string      `json:"message"`
	Class      string      `json:"class"` // 显示样式："healthy" / "diseased"（错误也用 diseased）/ ""
}
