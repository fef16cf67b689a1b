package middlewares

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"mirror/internal/utils"
)

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" header and stores its claims
// in the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			utils.SendJSONError(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(tokenString)
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(utils.WithClaims(r.Context(), claims)))
	})
}
