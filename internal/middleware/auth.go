package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/studylane/studylane/internal/auth"
)

// Authenticate validates the Bearer token on the request and stores the
// authenticated user id in the context for handlers and logging. Requests
// without a valid access token get 401 before reaching the handler.
func Authenticate(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "missing_token", "Authorization header with a Bearer token is required")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, "invalid_token", "Token is invalid or expired")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "invalid_token", "Token is not an access token")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 response in the API error envelope. The
// middleware package cannot use the api helpers without an import cycle,
// so the body is written inline here.
func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := SetErrorCode(r.Context(), code)
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}
