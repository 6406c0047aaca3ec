package handlers

import (
	"net/http"
	"time"

	"github.com/upb/devportal/cognito"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// HealthResponse is the liveness body shared by every health route
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Checks    map[string]string  `json:"checks"`
	KeySet    cognito.CacheStats `json:"key_set"`
}

// ReadinessConfig lists the settings the readiness probe reports on
type ReadinessConfig struct {
	CognitoConfigured bool
	DocsBucket        string
	ClusterName       string
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	keys   *cognito.KeySetCache
	config ReadinessConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(keys *cognito.KeySetCache, config ReadinessConfig, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		keys:   keys,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// HandleHealth handles GET|HEAD on every health route.
// It needs no auth and always reports ok while the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReadiness handles GET /readyz
// Reports configuration and key set cache state without making network calls
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"cognito":     configured(h.config.CognitoConfigured),
		"docs_bucket": configured(h.config.DocsBucket != ""),
		"cluster":     configured(h.config.ClusterName != ""),
	}

	var stats cognito.CacheStats
	if h.keys != nil {
		stats = h.keys.Stats()
	}
	if stats.Cached {
		checks["jwks"] = "cached"
	} else {
		checks["jwks"] = "cold"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !h.config.CognitoConfigured {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
		KeySet:    stats,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}
