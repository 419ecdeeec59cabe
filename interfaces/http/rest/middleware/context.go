package middleware

import (
	"net/http"
	"time"

	"blueprint-editor/pkg/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestContext stores the request id, the X-Ray trace id and the start
// time on the request context. It must run after chi's RequestID.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithStartTime(r.Context(), time.Now())
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = common.WithRequestID(ctx, id)
		}
		if trace := r.Header.Get("X-Amzn-Trace-Id"); trace != "" {
			ctx = common.WithTraceID(ctx, trace)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionContext tags requests routed under /sessions/{sid}
func SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid := chi.URLParam(r, "sid"); sid != "" {
			r = r.WithContext(common.WithSessionID(r.Context(), sid))
		}
		next.ServeHTTP(w, r)
	})
}
