package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

type userEmailKey struct{}

type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// AuthMiddleware verifies the admin JWT from the auth_token cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			m.deny(w, r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			logger.WithCtx(r.Context()).Debug().Err(err).Msg("rejected admin token")
			m.deny(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		fail(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
}

// UserEmail returns the admin email set by AuthMiddleware.
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey{}).(string)
	return email
}

func isAPIRequest(r *http.Request) bool {
	// Browsers opening the report get sent to login; everything else gets a 401
	if strings.Contains(r.Header.Get("Accept"), "text/html") && r.Method == http.MethodGet {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/atf/")
}
