package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestRecorder receives the outcome of every request.
type RequestRecorder interface {
	RecordRequest(route string, d time.Duration, statusCode int)
}

// RequestLogger logs and times requests.
type RequestLogger struct {
	logger   *slog.Logger
	recorder RequestRecorder
}

func NewRequestLogger(logger *slog.Logger, recorder RequestRecorder) *RequestLogger {
	return &RequestLogger{logger: logger, recorder: recorder}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Wrap instruments next. route names the pattern in logs and metrics.
func (l *RequestLogger) Wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		if wrapped.statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		l.logger.Log(r.Context(), level, "Handled request",
			slog.String("from", extractClientIP(r)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("route", route),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("duration", duration),
			slog.String("user_agent", r.UserAgent()))

		if l.recorder != nil {
			l.recorder.RecordRequest(route, duration, wrapped.statusCode)
		}
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
