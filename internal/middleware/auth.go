package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"podverse/internal/logging"
)

// Authenticate resolves the caller from an HS256 bearer token signed with
// secret and stores the token subject as the caller's user ID. Requests
// without an Authorization header continue anonymously; a bad token is
// rejected with 401.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (any, error) {
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw := parseBearerToken(header)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "NotAuthenticated", "malformed authorization header")
				return
			}

			var claims jwt.RegisteredClaims
			if _, err := jwt.ParseWithClaims(raw, &claims, keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})); err != nil {
				log.Debug().Err(err).Str("request_id", logging.RequestID(r.Context())).Msg("rejecting bearer token")
				writeError(w, http.StatusUnauthorized, "NotAuthenticated", "invalid token")
				return
			}
			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "NotAuthenticated", "token has no subject")
				return
			}

			next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), claims.Subject)))
		})
	}
}

func parseBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}{Name: name, Message: message})
}
