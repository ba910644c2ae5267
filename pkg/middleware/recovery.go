package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "bureau/pkg/errors"
	"bureau/pkg/logger"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				stack := string(debug.Stack())
				if p, ok := rec.(handlerPanic); ok {
					// Raised again by RequestTimeout; keep the original stack.
					rec, stack = p.value, string(p.stack)
				}
				log.Error("Panic recovered",
					"request_id", RequestID(r.Context()),
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", stack,
				)
				_ = apperrors.WriteError(w, apperrors.Internal("Internal server error", fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
