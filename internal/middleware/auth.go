// Package middleware содержит HTTP middleware сервера отчётов.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// AuthMiddleware проверяет API-ключ в заголовке Authorization: Bearer <key>.
type AuthMiddleware struct {
	keyDigest []byte
}

// NewAuthMiddleware создаёт проверку по ключу key. Пустой ключ отключает проверку.
func NewAuthMiddleware(key string) *AuthMiddleware {
	if key == "" {
		return &AuthMiddleware{}
	}
	return &AuthMiddleware{keyDigest: digest(key)}
}

// Enabled сообщает, требуется ли ключ.
func (a *AuthMiddleware) Enabled() bool {
	return len(a.keyDigest) > 0
}

// Middleware пропускает запрос только с верным ключом.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tipout"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		// Сравниваются дайджесты, чтобы время сравнения не зависело от длины ключа.
		if !hmac.Equal(digest(strings.TrimPrefix(header, bearerPrefix)), a.keyDigest) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
