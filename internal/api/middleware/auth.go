package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errNoToken     = errors.New("Not authorized, no token")
	errTokenFailed = errors.New("Not authorized, token failed")
)

const (
	tokenCookie    = "token"
	userIDHeader   = "X-User-ID"
	userIDClaimKey = "id"
)

// AuthConfig controls how Auth resolves the caller.
type AuthConfig struct {
	// Secret verifies HS256 tokens. Empty disables token identity.
	Secret []byte
	// AllowHeader accepts a plain X-User-ID header. Development only.
	AllowHeader bool
}

// Auth resolves the caller's user id and rejects requests without one.
// The token is read from the "token" cookie, then from a Bearer
// Authorization header.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolveUserID(r, cfg)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID stores the caller's id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the id stored by Auth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func resolveUserID(r *http.Request, cfg AuthConfig) (string, error) {
	token := bearerToken(r)
	if token != "" && len(cfg.Secret) > 0 {
		return parseToken(token, cfg.Secret)
	}

	if cfg.AllowHeader {
		if id := strings.TrimSpace(r.Header.Get(userIDHeader)); id != "" {
			return id, nil
		}
	}
	return "", errNoToken
}

func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func parseToken(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errTokenFailed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errTokenFailed
	}
	id, ok := claims[userIDClaimKey].(string)
	if !ok || id == "" {
		return "", errTokenFailed
	}
	return id, nil
}
