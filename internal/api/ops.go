package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/huskiesio/api/internal/store"
)

const version = "0.1.0"

type opsHandler struct {
	db     store.DataStore
	cache  store.CacheStore
	logger zerolog.Logger
}

func (o *opsHandler) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		o.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// Check represents the status of a single health check.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health pings both stores and reports per-dependency status.
func (o *opsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	dbStart := time.Now()
	if err := o.db.Ping(ctx); err != nil {
		checks["database"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["database"] = Check{Status: "pass", Latency: time.Since(dbStart).String()}
	}

	cacheStart := time.Now()
	if err := o.cache.Ping(ctx); err != nil {
		checks["cache"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["cache"] = Check{Status: "pass", Latency: time.Since(cacheStart).String()}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	o.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// StatsResponse represents aggregate platform counts.
type StatsResponse struct {
	TotalUsers    int64 `json:"total_users"`
	TotalThreads  int64 `json:"total_threads"`
	TotalMessages int64 `json:"total_messages"`
}

// Stats returns aggregate counts for dashboards.
func (o *opsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := o.db.CountUsers(ctx)
	if err != nil {
		o.JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count users"})
		return
	}
	totalThreads, err := o.db.CountThreads(ctx)
	if err != nil {
		o.JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count threads"})
		return
	}
	totalMessages, err := o.db.CountMessages(ctx)
	if err != nil {
		o.JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count messages"})
		return
	}

	o.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    totalUsers,
		TotalThreads:  totalThreads,
		TotalMessages: totalMessages,
	})
}
