package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"shelfreads/internal/observability/logging"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware reuses a caller-supplied request ID when present and
// mints one otherwise, echoing it back on the response and annotating the
// request context for downstream log lines.
func requestIDMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		if logger != nil {
			ctx = logging.ContextWithLogger(ctx, logger.With("request_id", requestID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
