// ABOUTME: HTTP middleware that identifies OAuth clients by their bearer token
// ABOUTME: Anonymous and invalid callers pass through; valid tokens add the client to the context

package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// OptionalAuthMiddleware attaches an AuthContext when the request carries a
// valid access token for a registered client. It never rejects a request.
func OptionalAuthMiddleware(issuer *Issuer, clients *ClientRegistry, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			info, err := issuer.VerifyAccessToken(token)
			if err != nil {
				logger.Debug("ignoring bearer token", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !clients.Authorize(info.ClientID) {
				logger.Debug("ignoring token for unknown client", "client_id", info.ClientID)
				next.ServeHTTP(w, r)
				return
			}

			authCtx := &AuthContext{
				ClientID:  info.ClientID,
				Scope:     info.Scope,
				ExpiresAt: info.ExpiresAt,
			}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
