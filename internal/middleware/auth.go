package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	principalKey       contextKey = "principal"
	principalHolderKey contextKey = "principal_holder"
)

// principalHolder lets outer middleware see the principal set further down the chain
type principalHolder struct {
	principal Principal
	set       bool
}

func withPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, principalHolderKey, h)
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID  uuid.UUID
	Role    string
	TokenID uuid.UUID
}

// Authenticator resolves a bearer token to its principal. Any error is
// answered with 401.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator
type AuthenticatorFunc func(ctx context.Context, token string) (Principal, error)

func (f AuthenticatorFunc) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	return f(ctx, token)
}

// AuthMiddleware validates bearer tokens and stores the principal in the request context
func AuthMiddleware(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			principal, err := auth.AuthenticateToken(r.Context(), parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", principal.UserID.String()),
				zap.String("role", principal.Role),
			)

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if h, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
		h.principal, h.set = p, true
	}
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the authenticated caller from the request context
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := GetPrincipal(ctx)
	return p.UserID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	p, ok := GetPrincipal(ctx)
	return p.Role, ok
}

// GetTokenID extracts the jti of the bearer token
func GetTokenID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := GetPrincipal(ctx)
	return p.TokenID, ok
}
