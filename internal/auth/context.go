package auth

import (
	"context"

	"github.com/serroba/email-tracker/internal/tracking"
)

type ownerKey struct{}

// WithOwner returns a context carrying the authenticated owner.
func WithOwner(ctx context.Context, owner tracking.OwnerID) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the authenticated owner, or the anonymous owner.
func OwnerFromContext(ctx context.Context) tracking.OwnerID {
	owner, _ := ctx.Value(ownerKey{}).(tracking.OwnerID)

	return owner
}
