package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

type principalKey struct{}

// WithPrincipal stores p on ctx. Auth does this for every verified request;
// tests call it directly.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller. ok is false on unauthenticated
// requests or when the stored principal is incomplete.
func PrincipalFromContext(ctx context.Context) (uuid.UUID, enums.ActorRole, bool) {
	if ctx == nil {
		return uuid.Nil, "", false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil || !p.Role.IsValid() {
		return uuid.Nil, "", false
	}
	return p.UserID, p.Role, true
}

func roleFromContext(ctx context.Context) enums.ActorRole {
	_, role, _ := PrincipalFromContext(ctx)
	return role
}

func userIDFromContext(ctx context.Context) string {
	id, _, ok := PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return id.String()
}
