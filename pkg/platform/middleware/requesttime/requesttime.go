// Package requesttime pins a single "now" per HTTP request so that every
// timestamp written while serving it (issuedAt, revokedAt, checkedAt) agrees.
package requesttime

import (
	"net/http"
	"time"

	"pixellocker/pkg/requestcontext"
)

// Middleware captures the request start time into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
