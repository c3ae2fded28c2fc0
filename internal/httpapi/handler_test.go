package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"hydro-monitor/internal/cache"
	"hydro-monitor/internal/consumer"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/pipeline"
	"hydro-monitor/internal/predictor"
	"hydro-monitor/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakePredictions struct {
	growth   models.Outcome
	disease  models.Outcome
	err      error
	filename string
	image    string
}

func (f *fakePredictions) PredictGrowth(ctx context.Context) (models.Outcome, error) {
	return f.growth, f.err
}

func (f *fakePredictions) PredictDisease(ctx context.Context, filename string, image io.Reader) (models.Outcome, error) {
	f.filename = filename
	data, _ := io.ReadAll(image)
	f.image = string(data)
	return f.disease, f.err
}

type fakeReadings struct {
	readings []models.SensorReading
	err      error
	limit    int
}

func (f *fakeReadings) ListRecent(ctx context.Context, limit int) ([]models.SensorReading, error) {
	f.limit = limit
	return f.readings, f.err
}

type fakeStateReader struct {
	env *models.SnapshotEnvelope
	err error
}

func (f *fakeStateReader) Latest(ctx context.Context) (*models.SnapshotEnvelope, error) {
	return f.env, f.err
}

type fakeFeed struct{ connected bool }

func (f *fakeFeed) IsConnected() bool { return f.connected }

type response[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) response[T] {
	var resp response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func newEnvelope(id string) models.SnapshotEnvelope {
	raw := models.RawSnapshot{"temperature": 30.0, "ph": 7.0, "distance": 5.0, "motion": "Yes", "sound": "Yes"}
	return models.SnapshotEnvelope{
		SnapshotID: id,
		ReceivedAt: time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
		Raw:        raw,
		State:      pipeline.New(pipeline.DefaultTankHeightCM).Derive(raw),
	}
}

func newTestRouter(deps Deps) http.Handler {
	if deps.Latest == nil {
		deps.Latest = state.NewCell[models.SnapshotEnvelope]()
	}
	return NewRouter(NewHandler(deps, zap.NewNop()), zap.NewNop())
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict/disease", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	h := newTestRouter(Deps{Feed: &fakeFeed{connected: true}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, ResultSuccess, resp.Code)
	assert.Equal(t, "ok", resp.Result["status"])
	assert.Equal(t, true, resp.Result["mqtt_connected"])
}

func TestGetDashboard_NoData(t *testing.T) {
	h := newTestRouter(Deps{Cache: &fakeStateReader{err: cache.ErrCacheMiss}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[any](t, rec)
	assert.Equal(t, ResultError, resp.Code)
	assert.Equal(t, "no sensor data yet", resp.Message)
}

func TestGetDashboard_FromCell(t *testing.T) {
	latest := state.NewCell[models.SnapshotEnvelope]()
	latest.Store(newEnvelope("snap-1"))
	h := newTestRouter(Deps{Latest: latest})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.SnapshotEnvelope](t, rec)
	assert.Equal(t, "snap-1", resp.Result.SnapshotID)
	assert.Equal(t, "Too Alkaline", resp.Result.State.Status.PH.Label)
	assert.Equal(t, "75%", resp.Result.State.WaterLevel.Display)
	assert.True(t, resp.Result.State.Security.Intruder.Detected)
}

func TestGetDashboard_FallsBackToCache(t *testing.T) {
	env := newEnvelope("snap-cached")
	h := newTestRouter(Deps{Cache: &fakeStateReader{env: &env}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "snap-cached", decode[models.SnapshotEnvelope](t, rec).Result.SnapshotID)
}

func TestPredictGrowth(t *testing.T) {
	cases := []struct {
		name    string
		outcome models.Outcome
		err     error
		status  int
		code    int
	}{
		{"healthy", predictor.FromPrediction("Healthy"), nil, http.StatusOK, ResultSuccess},
		{"diseased", predictor.FromPrediction("Unhealthy"), nil, http.StatusOK, ResultSuccess},
		{"no data", predictor.NoData(), predictor.ErrNoData, http.StatusOK, ResultSuccess},
		{"failure", predictor.FromError(errors.New("timeout")), errors.New("timeout"), http.StatusBadGateway, ResultError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(Deps{Predictions: &fakePredictions{growth: tc.outcome, err: tc.err}})

			rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/predict/growth", nil))

			assert.Equal(t, tc.status, rec.Code)
			resp := decode[models.Outcome](t, rec)
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, tc.outcome, resp.Result)
		})
	}
}

func TestPredictGrowth_FailureMessage(t *testing.T) {
	err := errors.New("connection refused")
	h := newTestRouter(Deps{Predictions: &fakePredictions{growth: predictor.FromError(err), err: err}})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/predict/growth", nil))

	resp := decode[models.Outcome](t, rec)
	assert.Equal(t, "Error: connection refused", resp.Message)
	assert.Equal(t, "diseased", resp.Result.Class)
	assert.Equal(t, models.OutcomeError, resp.Result.Kind)
}

func TestPredictDisease(t *testing.T) {
	preds := &fakePredictions{disease: predictor.FromPrediction("Leaf Spot")}
	h := newTestRouter(Deps{Predictions: preds})

	rec := serve(h, multipartRequest(t, "file", "leaf.jpg", []byte("jpeg-bytes")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "leaf.jpg", preds.filename)
	assert.Equal(t, "jpeg-bytes", preds.image)

	resp := decode[models.Outcome](t, rec)
	assert.Equal(t, models.OutcomeDiseased, resp.Result.Kind)
	assert.Equal(t, "Prediction: Leaf Spot", resp.Result.Message)
}

func TestPredictDisease_MissingFilePart(t *testing.T) {
	preds := &fakePredictions{}
	h := newTestRouter(Deps{Predictions: preds})

	rec := serve(h, multipartRequest(t, "image", "leaf.jpg", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file part in the request", decode[any](t, rec).Message)
	assert.Empty(t, preds.filename)
}

func TestPredictDisease_EmptyFilename(t *testing.T) {
	h := newTestRouter(Deps{Predictions: &fakePredictions{}})

	rec := serve(h, multipartRequest(t, "file", "", []byte("")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image selected for uploading", decode[any](t, rec).Message)
}

func TestPredictDisease_NotMultipart(t *testing.T) {
	h := newTestRouter(Deps{Predictions: &fakePredictions{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict/disease", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictDisease_UpstreamFailure(t *testing.T) {
	err := fmt.Errorf("%w: %d", predictor.ErrUnexpectedStatus, 500)
	h := newTestRouter(Deps{Predictions: &fakePredictions{disease: predictor.FromError(err), err: err}})

	rec := serve(h, multipartRequest(t, "file", "leaf.jpg", []byte("x")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[models.Outcome](t, rec)
	assert.Equal(t, "Error: server returned status: 500", resp.Result.Message)
}

func TestListReadings(t *testing.T) {
	readings := &fakeReadings{readings: []models.SensorReading{
		{SnapshotID: "a", Temperature: 22},
		{SnapshotID: "b", Temperature: 23},
	}}
	h := newTestRouter(Deps{Readings: readings})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/readings?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, readings.limit)
	resp := decode[[]models.SensorReading](t, rec)
	require.Len(t, resp.Result, 2)
	assert.Equal(t, "a", resp.Result[0].SnapshotID)
}

func TestListReadings_DefaultLimit(t *testing.T) {
	readings := &fakeReadings{}
	h := newTestRouter(Deps{Readings: readings})

	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/readings?limit=abc", nil))

	assert.Equal(t, 100, readings.limit)
}

func TestListReadings_Unavailable(t *testing.T) {
	h := newTestRouter(Deps{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListReadings_Error(t *testing.T) {
	h := newTestRouter(Deps{Readings: &fakeReadings{err: errors.New("db down")}})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportReadings(t *testing.T) {
	readings := &fakeReadings{readings: []models.SensorReading{{
		SnapshotID:        "snap-1",
		ReceivedAt:        time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC),
		Temperature:       30,
		TemperatureStatus: "warning",
		PH:                7,
		PHStatus:          "warning",
		WaterLevel:        75,
		Motion:            true,
		Sound:             true,
		Intruder:          true,
	}}}
	h := newTestRouter(Deps{Readings: readings})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/readings/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sensor-readings.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(readingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ReadingsExportHeader, rows[0])
	assert.Equal(t, "2026-07-01 08:00:00", rows[1][0])
	assert.Equal(t, "snap-1", rows[1][1])
	assert.Equal(t, "75", rows[1][9])
	assert.Equal(t, "Yes", rows[1][12])
}

func TestGetMetrics(t *testing.T) {
	m := consumer.NewMetrics()
	m.IncrementProcessed()
	m.IncrementSucceeded(time.Millisecond)
	h := newTestRouter(Deps{Metrics: m})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[consumer.MetricsSnapshot](t, rec)
	assert.Equal(t, int64(1), resp.Result.MessagesProcessed)
	assert.Equal(t, int64(1), resp.Result.MessagesSucceeded)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestRouter(Deps{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/predict/growth", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
