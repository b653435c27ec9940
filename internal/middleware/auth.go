// Package middleware provides HTTP middleware for the bridge API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

type contextKey string

const callerKey contextKey = "caller"

// CallerClaims are the JWT claims carried by bridge API tokens. The subject
// is the on-ledger account address the request acts as.
type CallerClaims struct {
	Address string `json:"address,omitempty"`
	jwt.RegisteredClaims
}

// Auth validates HS256 bearer tokens and puts the caller address on the
// request context. Requests without a valid token never reach the handler.
type Auth struct {
	secret    []byte
	skipPaths map[string]bool
	log       *logger.Logger
}

// AuthConfig configures the authentication middleware.
type AuthConfig struct {
	Secret    string
	SkipPaths []string
	Logger    *logger.Logger
}

// NewAuth creates the authentication middleware.
func NewAuth(cfg AuthConfig) *Auth {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Auth{
		secret:    []byte(cfg.Secret),
		skipPaths: skip,
		log:       log,
	}
}

// Handler returns the middleware handler.
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims, err := a.validate(raw)
		if err != nil {
			a.log.WithError(err).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		caller := claims.Address
		if caller == "" {
			caller = claims.Subject
		}
		if caller == "" {
			jsonError(w, http.StatusUnauthorized, "token carries no caller address")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) validate(raw string) (*CallerClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &CallerClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GenerateToken signs a token acting as the given caller address. Used by
// tooling and tests.
func GenerateToken(secret, caller string, claims CallerClaims) (string, error) {
	claims.Address = caller
	if claims.Subject == "" {
		claims.Subject = caller
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(secret))
}

// CallerFromContext returns the authenticated caller address, if any.
func CallerFromContext(ctx context.Context) string {
	if v := ctx.Value(callerKey); v != nil {
		return v.(string)
	}
	return ""
}

// WithCaller returns a context carrying the caller address. Used by tests and
// internal dispatch.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
