package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/email-tracker/internal/auth"
	"github.com/serroba/email-tracker/internal/ratelimit"
)

// PixelRoute is the router pattern of the tracking pixel.
const PixelRoute = "/track/open/{file}"

// RegisterPixelRoute mounts the pixel handler on the router, outside the API
// middleware chain, so it is neither validated nor rate limited.
func RegisterPixelRoute(router chi.Router, pixel *PixelHandler) {
	router.Method(http.MethodGet, PixelRoute, pixel)
	router.Method(http.MethodHead, PixelRoute, pixel)
}

// RegisterRoutes registers the tracking API operations.
func RegisterRoutes(api huma.API, sends *SendHandler, reports *ReportHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "log-send",
		Method:        http.MethodPost,
		Path:          "/api/track/send",
		Summary:       "Log a send",
		Description:   "Logs a send event and returns the tracking pixel for the message.",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusCreated,
		Metadata: metadata(auth.Optional,
			ratelimit.LimitConfig{Window: time.Minute, Max: 60},
			ratelimit.LimitConfig{Window: time.Hour, Max: 1000},
		),
	}, sends.LogSend)

	huma.Register(api, huma.Operation{
		OperationID:   "compose",
		Method:        http.MethodPost,
		Path:          "/api/compose",
		Summary:       "Compose and send a tracked email",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusCreated,
		Metadata: metadata(auth.Required,
			ratelimit.LimitConfig{Window: time.Minute, Max: 10},
			ratelimit.LimitConfig{Window: 24 * time.Hour, Max: 500},
		),
	}, sends.Compose)

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/api/reports/{tracking_id}",
		Summary:     "Open report of a send",
		Tags:        []string{"Reports"},
		Metadata:    metadata(auth.Required),
	}, reports.GetReport)

	huma.Register(api, huma.Operation{
		OperationID: "list-sends",
		Method:      http.MethodGet,
		Path:        "/api/sends",
		Summary:     "List the caller's sends",
		Tags:        []string{"Reports"},
		Metadata:    metadata(auth.Required),
	}, reports.ListSends)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-send",
		Method:        http.MethodDelete,
		Path:          "/api/sends/{tracking_id}",
		Summary:       "Delete a send and its opens",
		Tags:          []string{"Reports"},
		DefaultStatus: http.StatusNoContent,
		Metadata:      metadata(auth.Required),
	}, reports.DeleteSend)
}

// metadata builds operation metadata. Without limits the default policy applies.
func metadata(requirement auth.Requirement, limits ...ratelimit.LimitConfig) map[string]any {
	md := map[string]any{auth.MetadataKey: requirement}
	if len(limits) > 0 {
		md[ratelimit.MetadataKey] = ratelimit.EndpointConfig{Limits: limits}
	}

	return md
}
