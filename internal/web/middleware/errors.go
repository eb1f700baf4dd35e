package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorRenderer writes an error page for status
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int)

// ErrorHandler wraps an http.Handler and recovers from panics, rendering error pages
func ErrorHandler(logger *zap.Logger, render ErrorRenderer) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				if render == nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				render(w, r, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NotFoundHandler returns a handler for 404 errors
func NotFoundHandler(render ErrorRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if render == nil {
			http.NotFound(w, r)
			return
		}
		render(w, r, http.StatusNotFound)
	}
}
