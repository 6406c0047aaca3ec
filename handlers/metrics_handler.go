package handlers

import (
	"context"
	"net/http"

	"github.com/upb/devportal/services/ecsmetrics"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// Response shapes for GET /api/metrics
const (
	ShapeSeries = "series"
	ShapeLegacy = "legacy"
)

// MetricsService reads ECS service utilization
type MetricsService interface {
	ServiceUtilization(ctx context.Context, q ecsmetrics.Query) (*ecsmetrics.Series, error)
}

// MetricsHandler handles GET /api/metrics
type MetricsHandler struct {
	service        MetricsService
	defaultCluster string
	logger         *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(service MetricsService, defaultCluster string, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		service:        service,
		defaultCluster: defaultCluster,
		logger:         logger,
	}
}

type metricsQuery struct {
	Cluster string `query:"cluster" validate:"required"`
	Service string `query:"service" validate:"required"`
	Minutes int    `query:"minutes" validate:"gte=5,lte=1440"`
	Shape   string `query:"shape" validate:"oneof=series legacy"`
}

// HandleMetrics handles GET /api/metrics?cluster=&service=&minutes=&shape=
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	minutes, err := utils.QueryInt(values, "minutes", ecsmetrics.DefaultMinutes)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	q := metricsQuery{
		Cluster: utils.QueryString(values, "cluster", h.defaultCluster),
		Service: utils.QueryString(values, "service", ""),
		Minutes: minutes,
		Shape:   utils.QueryString(values, "shape", ShapeSeries),
	}
	if err := utils.ValidateStruct(&q); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	series, err := h.service.ServiceUtilization(r.Context(), ecsmetrics.Query{
		Cluster: q.Cluster,
		Service: q.Service,
		Minutes: q.Minutes,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if q.Shape == ShapeLegacy {
		_ = utils.WriteJSON(w, http.StatusOK, series.Legacy())
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, series)
}
