package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"

	healthy   = "healthy"
	unhealthy = "unhealthy"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc func(ctx context.Context) error

// Ping calls f.
func (f CheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker adapts a Redis client to the Checker interface.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type check struct {
	name     string
	checker  Checker
	critical bool
}

// Handler handles health check operations.
type Handler struct {
	checks  []check
	timeout time.Duration
}

// NewHandler creates a health handler bounding each check by timeout.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{timeout: timeout}
}

// Add registers a dependency check. A failing critical check makes the
// service unavailable; any other failure only degrades it.
func (h *Handler) Add(name string, checker Checker, critical bool) {
	h.checks = append(h.checks, check{name: name, checker: checker, critical: critical})
}

// Response is the response for health check endpoint.
type Response struct {
	Status int
	Body   struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{Status: http.StatusOK}
	resp.Body.Status = statusOK
	resp.Body.Checks = make(map[string]string, len(h.checks))

	for _, c := range h.checks {
		if err := h.ping(ctx, c.checker); err == nil {
			resp.Body.Checks[c.name] = healthy

			continue
		}

		resp.Body.Checks[c.name] = unhealthy

		switch {
		case c.critical:
			resp.Status = http.StatusServiceUnavailable
			resp.Body.Status = statusUnavailable
		case resp.Body.Status == statusOK:
			resp.Body.Status = statusDegraded
		}
	}

	return resp, nil
}

func (h *Handler) ping(ctx context.Context, checker Checker) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	return checker.Ping(ctx)
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/health", h.Check)
}
