package predictor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"hydro-monitor/internal/models"
	"hydro-monitor/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	label    string
	err      error
	calls    int
	features models.GrowthFeatures
	filename string
	image    string
}

func (f *fakeBackend) PredictDisease(ctx context.Context, filename string, image io.Reader) (string, error) {
	f.calls++
	f.filename = filename
	data, _ := io.ReadAll(image)
	f.image = string(data)
	return f.label, f.err
}

func (f *fakeBackend) PredictGrowth(ctx context.Context, features models.GrowthFeatures) (string, error) {
	f.calls++
	f.features = features
	return f.label, f.err
}

func TestService_PredictGrowth_NoSnapshot(t *testing.T) {
	backend := &fakeBackend{label: "Healthy"}
	svc := NewService(backend, state.NewCell[models.RawSnapshot](), zap.NewNop())

	out, err := svc.PredictGrowth(context.Background())

	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, models.OutcomeNoData, out.Kind)
	assert.Equal(t, "No sensor data available yet.", out.Message)
	assert.Equal(t, 0, backend.calls)
}

func TestService_PredictGrowth_EmptySnapshot(t *testing.T) {
	backend := &fakeBackend{label: "Healthy"}
	latest := state.NewCell[models.RawSnapshot]()
	latest.Store(models.RawSnapshot{})
	svc := NewService(backend, latest, zap.NewNop())

	out, err := svc.PredictGrowth(context.Background())

	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, models.OutcomeNoData, out.Kind)
	assert.Equal(t, 0, backend.calls)
}

func TestService_PredictGrowth_UsesLatestSnapshot(t *testing.T) {
	backend := &fakeBackend{label: "Unhealthy"}
	latest := state.NewCell[models.RawSnapshot]()
	latest.Store(models.RawSnapshot{"ph": 5.0})
	latest.Store(models.RawSnapshot{"ph": 6.0, "temperature": 22.0})
	svc := NewService(backend, latest, zap.NewNop())

	out, err := svc.PredictGrowth(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.GrowthFeatures{PH: 6.0, Temp: 22, TDS: 140, EC: 2}, backend.features)
	assert.Equal(t, models.OutcomeDiseased, out.Kind)
	assert.Equal(t, "Prediction: Unhealthy", out.Message)
}

func TestService_PredictGrowth_Failure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	latest := state.NewCell[models.RawSnapshot]()
	latest.Store(models.RawSnapshot{"ph": 6.0})
	svc := NewService(backend, latest, zap.NewNop())

	out, err := svc.PredictGrowth(context.Background())

	require.Error(t, err)
	assert.Equal(t, models.OutcomeError, out.Kind)
	assert.Equal(t, "diseased", out.Class)
	assert.Equal(t, "Error: connection refused", out.Message)
}

func TestService_PredictDisease(t *testing.T) {
	backend := &fakeBackend{label: "Healthy"}
	svc := NewService(backend, state.NewCell[models.RawSnapshot](), zap.NewNop())

	out, err := svc.PredictDisease(context.Background(), "leaf.jpg", strings.NewReader("img"))
	require.NoError(t, err)

	assert.Equal(t, "leaf.jpg", backend.filename)
	assert.Equal(t, "img", backend.image)
	assert.Equal(t, models.OutcomeHealthy, out.Kind)
	assert.Equal(t, "healthy", out.Class)
	assert.Equal(t, "Prediction: Healthy", out.Message)
}
