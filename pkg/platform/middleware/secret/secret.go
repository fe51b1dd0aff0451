// Package secret guards routes with a static shared-secret header.
package secret

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "dronewatch/pkg/domain-errors"
	"dronewatch/pkg/platform/httputil"
	"dronewatch/pkg/requestcontext"
)

// Header carries the shared secret.
const Header = "x-secret"

// RequireSecret rejects requests whose x-secret header does not match
// expected. An empty expected secret rejects everything.
func RequireSecret(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if expected == "" {
				logger.ErrorContext(ctx, "shared secret not configured, rejecting request",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
				return
			}

			provided := r.Header.Get(Header)
			// constant-time compare
			if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "shared secret mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"header_present", provided != "",
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
