package predictor

import (
	"context"
	"io"

	"hydro-monitor/internal/models"
	"hydro-monitor/internal/state"

	"go.uber.org/zap"
)

// Backend 预测服务接口（Client 实现；测试中可替换）
type Backend interface {
	PredictDisease(ctx context.Context, filename string, image io.Reader) (string, error)
	PredictGrowth(ctx context.Context, features models.GrowthFeatures) (string, error)
}

// Service 预测用例：读取最新快照、调用预测服务、转换为用户可见结果
// 每次请求独立，不与数据订阅互斥；并发请求以最后返回的为准
type Service struct {
	backend Backend
	latest  *state.Cell[models.RawSnapshot]
	logger  *zap.Logger
}

// NewService 创建预测服务
func NewService(backend Backend, latest *state.Cell[models.RawSnapshot], logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		latest:  latest,
		logger:  logger,
	}
}

// PredictGrowth 用最新快照做生长预测
// 返回的 Outcome 总是可展示的；error 非空表示调用失败（Outcome.Kind 为 error 或 no_data）
func (s *Service) PredictGrowth(ctx context.Context) (models.Outcome, error) {
	raw, ok := s.latest.Load()
	if !ok || !raw.HasData() {
		s.logger.Debug("Skipping growth prediction: no sensor data yet")
		return NoData(), ErrNoData
	}

	label, err := s.backend.PredictGrowth(ctx, GrowthFeaturesFrom(raw))
	if err != nil {
		s.logger.Warn("Growth prediction failed", zap.Error(err))
		return FromError(err), err
	}
	return FromPrediction(label), nil
}

// PredictDisease 上传图片做病害分类
func (s *Service) PredictDisease(ctx context.Context, filename string, image io.Reader) (models.Outcome, error) {
	label, err := s.backend.PredictDisease(ctx, filename, image)
	if err != nil {
		s.logger.Warn("Disease prediction failed",
			zap.String("filename", filename),
			zap.Error(err),
		)
		return FromError(err), err
	}
	return FromPrediction(label), nil
}
