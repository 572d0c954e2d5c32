package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/email-tracker/internal/auth"
	"go.uber.org/zap"
)

// Authenticate returns a Huma middleware resolving the bearer token into the owning user.
// Operations declare their requirement through auth.MetadataKey.
func Authenticate(
	api huma.API,
	tokens *auth.Tokens,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requirement := auth.RequirementOf(ctx.Operation())
		if requirement == 0 {
			next(ctx)

			return
		}

		owner, err := tokens.Verify(bearerToken(ctx.Header("Authorization")))
		if err != nil {
			if requirement == auth.Required {
				ctx.SetHeader("WWW-Authenticate", "Bearer")
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "authentication required")

				return
			}

			logger.Debug("continuing anonymously", zap.String("path", operationPath(ctx)), zap.Error(err))
			next(ctx)

			return
		}

		next(huma.WithContext(ctx, auth.WithOwner(ctx.Context(), owner)))
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
