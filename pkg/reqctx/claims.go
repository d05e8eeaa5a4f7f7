package reqctx

import "context"

// AuthClaims is what the HTTP layer needs from a verified token.
type AuthClaims interface {
	GetUserID() int64
	GetRole() string
	GetTokenType() string
	IsExpired() bool
}

func WithClaims(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns nil for unauthenticated requests.
func ClaimsFromContext(ctx context.Context) AuthClaims {
	claims, _ := ctx.Value(keyClaims).(AuthClaims)
	return claims
}

func IsAuthenticated(ctx context.Context) bool {
	claims := ClaimsFromContext(ctx)
	return claims != nil && !claims.IsExpired()
}

// UserIDFromContext returns 0, false if the request is not authenticated
// or the claims have expired.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if !IsAuthenticated(ctx) {
		return 0, false
	}
	return ClaimsFromContext(ctx).GetUserID(), true
}
