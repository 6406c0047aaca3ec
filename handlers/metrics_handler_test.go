package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/devportal/services"
	"github.com/upb/devportal/services/ecsmetrics"
	"go.uber.org/zap"
)

type MockMetricsService struct {
	mock.Mock
}

func (m *MockMetricsService) ServiceUtilization(ctx context.Context, q ecsmetrics.Query) (*ecsmetrics.Series, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ecsmetrics.Series), args.Error(1)
}

func sampleSeries() *ecsmetrics.Series {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &ecsmetrics.Series{
		CPU:    []ecsmetrics.Point{{T: t0, V: 12.5}, {T: t0.Add(time.Minute), V: 13}},
		Memory: []ecsmetrics.Point{{T: t0, V: 40}},
	}
}

func TestHandleMetrics(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults cluster and window", func(t *testing.T) {
		svc := new(MockMetricsService)
		svc.On("ServiceUtilization", mock.Anything, ecsmetrics.Query{
			Cluster: "developer-portal-cluster", Service: "api", Minutes: 60,
		}).Return(sampleSeries(), nil)

		w := httptest.NewRecorder()
		NewMetricsHandler(svc, "developer-portal-cluster", logger).
			HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics?service=api", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"cpu":[{"t":"2024-05-01T12:00:00Z","v":12.5},{"t":"2024-05-01T12:01:00Z","v":13}],
			"memory":[{"t":"2024-05-01T12:00:00Z","v":40}]
		}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("explicit params and legacy shape", func(t *testing.T) {
		svc := new(MockMetricsService)
		svc.On("ServiceUtilization", mock.Anything, ecsmetrics.Query{
			Cluster: "prod", Service: "web", Minutes: 15,
		}).Return(sampleSeries(), nil)

		w := httptest.NewRecorder()
		NewMetricsHandler(svc, "default", logger).
			HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics?cluster=prod&service=web&minutes=15&shape=legacy", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"CPUUtilization":[12.5,13],"MemoryUtilization":[40]}`, w.Body.String())
	})

	t.Run("invalid parameters are 422 without provider calls", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
			field string
		}{
			{"missing service", "", "service"},
			{"non-numeric minutes", "service=api&minutes=abc", "minutes"},
			{"minutes below range", "service=api&minutes=4", "minutes"},
			{"minutes above range", "service=api&minutes=1441", "minutes"},
			{"unknown shape", "service=api&shape=flat", "shape"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockMetricsService)

				w := httptest.NewRecorder()
				NewMetricsHandler(svc, "default", logger).
					HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics?"+tt.query, nil))

				assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
				response := decodeError(t, w)
				assert.Equal(t, "validation_error", response.Error)
				assert.Contains(t, response.Details, tt.field)
				svc.AssertNotCalled(t, "ServiceUtilization", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("provider error is 502", func(t *testing.T) {
		svc := new(MockMetricsService)
		svc.On("ServiceUtilization", mock.Anything, mock.Anything).
			Return(nil, services.WrapExternal("Metrics fetch failed", errors.New("throttled")))

		w := httptest.NewRecorder()
		NewMetricsHandler(svc, "default", logger).
			HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics?service=api", nil))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Metrics fetch failed: throttled", decodeError(t, w).Message)
	})
}
