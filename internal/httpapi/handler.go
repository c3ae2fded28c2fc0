package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"hydro-monitor/internal/cache"
	"hydro-monitor/internal/consumer"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/predictor"
	"hydro-monitor/internal/repository"
	"hydro-monitor/internal/state"

	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

// Predictions 预测用例（predictor.Service 实现）
type Predictions interface {
	PredictGrowth(ctx context.Context) (models.Outcome, error)
	PredictDisease(ctx context.Context, filename string, image io.Reader) (models.Outcome, error)
}

// ReadingsLister 历史记录查询（repository.ReadingsRepository 实现）
type ReadingsLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.SensorReading, error)
}

// StateReader 状态缓存读取（cache.StateCache 实现）
type StateReader interface {
	Latest(ctx context.Context) (*models.SnapshotEnvelope, error)
}

// MetricsSource 订阅指标
type MetricsSource interface {
	GetSnapshot() consumer.MetricsSnapshot
}

// WebSocketServer 看板推送（websocket.Hub 实现）
type WebSocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// ConnectionChecker MQTT 连接状态
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps Handler 依赖；Cache、Readings、Feed 可以为 nil
type Deps struct {
	Latest      *state.Cell[models.SnapshotEnvelope]
	Cache       StateReader
	Predictions Predictions
	Readings    ReadingsLister
	Metrics     MetricsSource
	Hub         WebSocketServer
	Feed        ConnectionChecker
}

// Handler 看板 HTTP 接口
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler 创建 Handler
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

// Health GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if h.deps.Feed != nil {
		status["mqtt_connected"] = h.deps.Feed.IsConnected()
	}
	if h.deps.Hub != nil {
		status["ws_clients"] = h.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

// WebSocket GET /ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("websocket not available"))
		return
	}
	h.deps.Hub.ServeWS(w, r)
}

// GetDashboard GET /api/v1/dashboard
// 内存中没有快照时（如刚重启）回落到 Redis 缓存
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if env, ok := h.deps.Latest.Load(); ok {
		writeJSON(w, http.StatusOK, Ok(env))
		return
	}

	if h.deps.Cache != nil {
		env, err := h.deps.Cache.Latest(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, Ok(env))
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("Failed to read state cache", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusNotFound, Fail("no sensor data yet"))
}

// PredictGrowth POST /api/v1/predict/growth
func (h *Handler) PredictGrowth(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Predictions.PredictGrowth(r.Context())
	h.writeOutcome(w, out, err)
}

// PredictDisease POST /api/v1/predict/disease（multipart，字段名 file）
func (h *Handler) PredictDisease(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("No file part in the request"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// 文件名为空的 part 会被解析成普通表单值
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeJSON(w, http.StatusBadRequest, Fail("No image selected for uploading"))
			return
		}
		writeJSON(w, http.StatusBadRequest, Fail("No file part in the request"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, Fail("No image selected for uploading"))
		return
	}

	out, err := h.deps.Predictions.PredictDisease(r.Context(), header.Filename, file)
	h.writeOutcome(w, out, err)
}

// writeOutcome 预测失败返回 502；没有数据不算失败
func (h *Handler) writeOutcome(w http.ResponseWriter, out models.Outcome, err error) {
	if err != nil && !errors.Is(err, predictor.ErrNoData) {
		writeJSON(w, http.StatusBadGateway, FailWith(out.Message, out))
		return
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// ListReadings GET /api/v1/readings?limit=N
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings, ok := h.listReadings(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Ok(readings))
}

// ExportReadings GET /api/v1/readings/export?limit=N
func (h *Handler) ExportReadings(w http.ResponseWriter, r *http.Request) {
	readings, ok := h.listReadings(w, r)
	if !ok {
		return
	}

	data, err := GenerateReadingsExport(readings)
	if err != nil {
		h.logger.Error("Failed to generate readings export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=sensor-readings.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) ([]models.SensorReading, bool) {
	if h.deps.Readings == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("reading history not available"))
		return nil, false
	}

	limit := parseInt(r.URL.Query().Get("limit"), repository.DefaultListLimit)
	readings, err := h.deps.Readings.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list readings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list readings"))
		return nil, false
	}
	return readings, true
}

// GetMetrics GET /api/v1/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.deps.Metrics == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("metrics not available"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.deps.Metrics.GetSnapshot()))
}
