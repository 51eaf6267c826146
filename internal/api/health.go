package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

type HealthHandler struct {
	database    ReadinessChecker
	storage     string
	promHandler http.Handler
	logger      *zap.Logger
}

func NewHealthHandler(database ReadinessChecker, storage string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		database:    database,
		storage:     storage,
		promHandler: promhttp.Handler(),
		logger:      logger.Named("health"),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "sxbin",
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "sxbin",
		Checks: map[string]healthCheckResult{
			"storage": {Status: "ok", Message: h.storage},
		},
	}
	status := http.StatusOK

	if err := h.database.CheckReady(ctx); err != nil {
		h.logger.Warn("database not ready", zap.Error(err))
		resp.Status = "fail"
		resp.Checks["database"] = healthCheckResult{Status: "fail", Message: err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = healthCheckResult{Status: "ok"}
	}

	writeJSON(w, status, resp)
}

func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
