package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope categorizes a request for rate limiting purposes.
type Scope string

const (
	// ScopeGlobal applies to all API requests.
	ScopeGlobal Scope = "global"
	// ScopeRead applies to GET, HEAD and OPTIONS.
	ScopeRead Scope = "read"
	// ScopeWrite applies to every other method.
	ScopeWrite Scope = "write"
	// ScopeCustom labels windows declared on the operation itself.
	ScopeCustom Scope = "custom"
)

// MetadataKey is the huma operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig is per-operation rate limit configuration.
// Non-empty Limits replace the policy windows for the operation.
type EndpointConfig struct {
	Limits   []LimitConfig
	Disabled bool
}

// Scopes returns the policy scopes that apply to an HTTP method.
func Scopes(method string) []Scope {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeRead}
	default:
		return []Scope{ScopeGlobal, ScopeWrite}
	}
}

// EndpointConfigOf extracts the EndpointConfig from operation metadata, if present.
func EndpointConfigOf(op *huma.Operation) (EndpointConfig, bool) {
	if op == nil || op.Metadata == nil {
		return EndpointConfig{}, false
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)

	return cfg, ok
}
