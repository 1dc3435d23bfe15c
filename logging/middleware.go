package logging

import (
	"context"
	"net/http"
	"reflect"

	"github.com/quadmarket/gateway/errors"
)

const stackSize = 5

// Middleware creates a fresh logging scope for each request so that Track
// works as expected, and recovers panics into clean errors with a stack.
func Middleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := With(r.Context(), logger)

			defer func() {
				if rec := recover(); rec != nil {
					err := errors.Wrap(rec, 3)
					Track(ctx, "error.panic", true)
					TrackError(ctx, err)
					Errorw(ctx, "panic while handling request",
						"method", r.Method, "path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrackError records error fields on the request's logging scope so they
// appear on the access log line.
func TrackError(ctx context.Context, err error) {
	Track(ctx, "error.type", reflect.TypeOf(err).String())
	Track(ctx, "error.http_status", errors.HTTPStatusCode(err))

	var wrapped *errors.Error
	if errors.As(err, &wrapped) {
		Track(ctx, "error.stack_trace", wrapped.MinimalStack(0, stackSize))
		Track(ctx, "error.original_type", wrapped.TypeName())
	}
}
