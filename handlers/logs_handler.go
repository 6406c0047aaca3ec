package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/devportal/services/logquery"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// LogsService runs log queries and stream tails
type LogsService interface {
	RunQuery(ctx context.Context, q logquery.Query) (*logquery.QueryResult, error)
	GetQuery(ctx context.Context, queryID string) (*logquery.QueryResult, error)
	Tail(ctx context.Context, service string, limit int) (*logquery.TailResult, error)
}

// LogsHandler handles the /api/logs routes
type LogsHandler struct {
	service LogsService
	logger  *zap.Logger
}

// NewLogsHandler creates a new LogsHandler
func NewLogsHandler(service LogsService, logger *zap.Logger) *LogsHandler {
	return &LogsHandler{
		service: service,
		logger:  logger,
	}
}

type logsQuery struct {
	LogGroup string `query:"logGroup" validate:"required_without=Service"`
	Service  string `query:"service" validate:"required_without=LogGroup"`
	Limit    int    `query:"limit" validate:"gte=1,lte=200"`
	Minutes  int    `query:"minutes" validate:"gte=5,lte=1440"`
}

// HandleLogs handles GET /api/logs?logGroup=&limit=&minutes= (Insights query)
// and GET /api/logs?service=&limit= (latest stream tail). logGroup wins when
// both are given.
func (h *LogsHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	limit, err := utils.QueryInt(values, "limit", logquery.DefaultLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	minutes, err := utils.QueryInt(values, "minutes", logquery.DefaultMinutes)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	q := logsQuery{
		LogGroup: utils.QueryString(values, "logGroup", ""),
		Service:  utils.QueryString(values, "service", ""),
		Limit:    limit,
		Minutes:  minutes,
	}
	if err := utils.ValidateStruct(&q); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if q.LogGroup != "" {
		result, err := h.service.RunQuery(r.Context(), logquery.Query{
			LogGroup: q.LogGroup,
			Limit:    q.Limit,
			Minutes:  q.Minutes,
		})
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.service.Tail(r.Context(), q.Service, q.Limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// HandleQueryStatus handles GET /api/logs/queries/{queryId}
func (h *LogsHandler) HandleQueryStatus(w http.ResponseWriter, r *http.Request) {
	queryID := chi.URLParam(r, "queryId")

	result, err := h.service.GetQuery(r.Context(), queryID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, result)
}
