package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// EmployeeHeader carries the acting employee code for request logs.
const EmployeeHeader = "X-Employee-Code"

// NewLogger builds the process logger. format "console" (or "text") selects
// the human readable writer; anything else logs JSON.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// RequestLogger attaches a request scoped logger to the context, so ledger
// writes made while serving the request carry its ids, and logs one line per
// request when it completes.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fields := l.Logger.With().Str("request_id", middleware.GetReqID(ctx))
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = fields.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if emp := strings.TrimSpace(r.Header.Get(EmployeeHeader)); emp != "" {
			fields = fields.Str("employee_code", emp)
		}
		reqLogger := fields.Logger()

		ww := wrap(w, r)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(ctx)))

		route := routeOf(r, r.URL.Path)
		status := statusOf(ww)
		evt := reqLogger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = reqLogger.Error()
		case status >= http.StatusBadRequest:
			evt = reqLogger.Warn()
		}
		evt.Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int("bytes", ww.BytesWritten()).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("http_request")
	})
}
