// Package requesttime captures one "now" per HTTP request so every time-based
// decision inside the request (such as the /nfz query window) agrees.
package requesttime

import (
	"net/http"
	"time"

	"dronewatch/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
