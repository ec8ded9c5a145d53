package appMiddleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-users-api/internal/api"
)

// Recover is the outermost error boundary of the request pipeline. A panic
// anywhere downstream is logged with its stack and answered with the
// generic 500 envelope; nothing from the panic reaches the client.
func Recover(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					// The server treats this sentinel as a silent abort.
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "Recovered from panic",
					slog.Any("panic", fmt.Sprint(rec)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)

				// Upgraded connections have no usable response writer.
				if r.Header.Get("Connection") != "Upgrade" {
					api.ErrorResponse(w, r, http.StatusInternalServerError, api.MessageInternal, api.CodeInternal)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds each request with a context deadline. A handler that gives
// up on the deadline without writing gets the 504 envelope.
func Timeout(timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && ww.Status() == 0 {
				api.ErrorResponse(w, r, http.StatusGatewayTimeout, api.MessageTimeout, api.CodeTimeout)
			}
		})
	}
}
