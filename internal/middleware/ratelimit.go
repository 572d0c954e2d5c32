package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/email-tracker/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter returns a Huma middleware applying the limiter's policy to each operation.
// Operations may disable limiting or declare their own windows through ratelimit.MetadataKey.
func RateLimiter(
	api huma.API,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg, _ := ratelimit.EndpointConfigOf(ctx.Operation())
		if cfg.Disabled {
			next(ctx)

			return
		}

		key := clientKey(ctx)

		var (
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if len(cfg.Limits) > 0 {
			exceeded, err = limiter.AllowCustom(ctx.Context(), key, operationPath(ctx), cfg.Limits)
		} else {
			exceeded, err = limiter.Allow(ctx.Context(), key, ratelimit.Scopes(ctx.Method()))
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", operationPath(ctx)), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("path", operationPath(ctx)),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
			)
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, "rate limit exceeded: "+exceeded.String())

			return
		}

		next(ctx)
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

// clientKey hashes the client IP and user agent into a rate limit key.
func clientKey(ctx huma.Context) string {
	meta, ok := RequestMetaFromContext(ctx.Context())
	if !ok {
		meta.ClientIP = ctx.RemoteAddr()
		if host, _, err := net.SplitHostPort(meta.ClientIP); err == nil {
			meta.ClientIP = host
		}

		meta.UserAgent = ctx.Header("User-Agent")
	}

	hash := sha256.Sum256([]byte(meta.ClientIP + "|" + meta.UserAgent))

	return hex.EncodeToString(hash[:])
}
