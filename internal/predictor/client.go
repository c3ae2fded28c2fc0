package predictor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hydro-monitor/common/config"
	"hydro-monitor/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnexpectedStatus 预测服务返回非 2xx
	ErrUnexpectedStatus = errors.New("server returned status")
	// ErrMissingPrediction 响应里没有 prediction 字段
	ErrMissingPrediction = errors.New("response has no prediction")
	// ErrNoData 还没有可用的传感器快照，请求不会发出
	ErrNoData = errors.New("no sensor data available")
)

const (
	pathPredictDisease = "/predict_cnn"
	pathPredictGrowth  = "/predict_ml"
)

// predictionResponse 预测服务响应
// 失败时服务端返回 {"error": "..."}
type predictionResponse struct {
	Prediction *string `json:"prediction"`
	Error      string  `json:"error"`
}

// Client 外部预测服务客户端（病害图片分类 + 生长预测）
type Client struct {
	httpClient *resty.Client
	upload     *resty.Client // 图片上传的请求体是流，不能重放，单独一个不重试的客户端
	logger     *zap.Logger
}

// NewClient 创建预测服务客户端
func NewClient(cfg *config.PredictorConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")

	upload := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		upload:     upload,
		logger:     logger,
	}
}

// PredictDisease 上传一张叶片图片做病害分类，返回类别标签（如 "Healthy"、"Leaf Spot"）
func (c *Client) PredictDisease(ctx context.Context, filename string, image io.Reader) (string, error) {
	c.logger.Info("Calling predictor: predict_cnn", zap.String("filename", filename))

	var response predictionResponse
	resp, err := c.upload.R().
		SetContext(ctx).
		SetFileReader("file", filename, image).
		SetResult(&response).
		SetError(&response).
		Post(pathPredictDisease)

	return c.handle(pathPredictDisease, resp, err, &response)
}

// PredictGrowth 按传感器特征做生长预测，返回 "Healthy" / "Unhealthy"
func (c *Client) PredictGrowth(ctx context.Context, features models.GrowthFeatures) (string, error) {
	c.logger.Info("Calling predictor: predict_ml",
		zap.Float64("ph", features.PH),
		zap.Float64("temp", features.Temp),
		zap.Float64("tds", features.TDS),
		zap.Float64("ec", features.EC),
	)

	var response predictionResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(features).
		SetResult(&response).
		SetError(&response).
		Post(pathPredictGrowth)

	return c.handle(pathPredictGrowth, resp, err, &response)
}

func (c *Client) handle(path string, resp *resty.Response, err error, response *predictionResponse) (string, error) {
	if err != nil {
		c.logger.Error("Predictor call failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to call predictor %s: %w", path, err)
	}

	if !resp.IsSuccess() {
		c.logger.Error("Predictor returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", response.Error),
		)
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}

	if response.Prediction == nil {
		c.logger.Error("Predictor response has no prediction",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", ErrMissingPrediction
	}

	c.logger.Info("Predictor returned prediction",
		zap.String("path", path),
		zap.String("prediction", *response.Prediction),
	)
	return *response.Prediction, nil
}
