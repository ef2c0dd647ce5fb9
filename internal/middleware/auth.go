package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/utils"
)

// Auth verifies bearer tokens and resolves the caller's current role
type Auth struct {
	secret   string
	resolver *identity.Resolver
	log      *zap.Logger
}

// NewAuth creates the authentication middleware
func NewAuth(secret string, resolver *identity.Resolver, log *zap.Logger) *Auth {
	return &Auth{secret: secret, resolver: resolver, log: log}
}

// Require rejects requests without a valid access token
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := utils.AccessClaims(parts[1], a.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		p, err := a.resolver.Resolve(r.Context(), claims)
		if err != nil {
			if !apperr.Is(err, apperr.KindUnauthenticated) {
				a.log.Error("Failed to resolve principal", zap.String("principal", claims.ID), zap.Error(err))
			}
			writeError(w, apperr.HTTPStatus(err), apperr.PublicMessage(err))
			return
		}

		notePrincipal(r.Context(), p.ID)
		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
