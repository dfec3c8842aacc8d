package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

type tenantIDKey struct{}

// WithTenantID threads the tenant identifier through the call graph.
// Every consent check and repo query reads the tenant from here rather
// than from service constructor state.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// TenantID extracts the tenant identifier. ok is false when the caller
// never attached one; callers treat that as a validation failure.
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(tenantIDKey{})
	id, ok := val.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
