package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	serviceVersion = "1.0.0"

	defaultReadyTimeout = 3 * time.Second
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyChecker reports whether a downstream service is usable.
type DependencyChecker interface {
	CheckHealth(ctx context.Context) error
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Service   string        `json:"service"`
	Uptime    string        `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

type ReadyResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	UsersService string `json:"users_service,omitempty"`
}

type InfoResponse struct {
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Endpoints    []string          `json:"endpoints"`
}

// HealthRouter serves /health, /ready and /info. When usersService is set, readiness
// also probes it and degrades instead of failing when it is unreachable.
type HealthRouter struct {
	service      string
	startTime    time.Time
	db           Pinger
	usersService DependencyChecker
	info         InfoResponse
	logger       *slog.Logger
	// bounds the database ping; request contexts carry no cancellation
	readyTimeout time.Duration
}

func (hr *HealthRouter) Register(r chi.Router) {
	r.Get("/health", hr.health)
	r.Get("/ready", hr.ready)
	r.Get("/info", hr.infoHandler)
}

func (hr *HealthRouter) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, hr.logger, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   hr.service,
		Uptime:    time.Since(hr.startTime).Round(time.Second).String(),
		StartTime: hr.startTime,
	})
}

func (hr *HealthRouter) ready(w http.ResponseWriter, r *http.Request) {
	timeout := hr.readyTimeout
	if timeout == 0 {
		timeout = defaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := hr.db.Ping(ctx); err != nil {
		hr.logger.Error("readiness check failed: database unreachable", "error", err)
		writeJSON(w, hr.logger, http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not ready",
			Database: "disconnected",
		})
		return
	}

	resp := ReadyResponse{Status: "ready", Database: "connected"}

	if hr.usersService != nil {
		if err := hr.usersService.CheckHealth(r.Context()); err != nil {
			hr.logger.Warn("users service unreachable, reporting degraded", "error", err)
			resp.Status = "degraded"
			resp.UsersService = "unreachable"
		} else {
			resp.UsersService = "reachable"
		}
	}

	writeJSON(w, hr.logger, http.StatusOK, resp)
}

func (hr *HealthRouter) infoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, hr.logger, http.StatusOK, hr.info)
}
