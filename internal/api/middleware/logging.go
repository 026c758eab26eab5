package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingMiddleware emits one structured line per request, enriched with the
// trace id and authenticated user. Health probes are logged at debug level.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// AuthMiddleware runs deeper in the chain and stamps rw.userID.
			next.ServeHTTP(rw, r)

			level := zapcore.InfoLevel
			switch {
			case strings.HasPrefix(r.URL.Path, "/health/"):
				level = zapcore.DebugLevel
			case rw.status >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			}
			if ce := logger.Check(level, "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", rw.status),
					zap.Int("bytes", rw.bytes),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.String("user_id", rw.userID),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

// statusRecorder captures what the handler wrote. userID is filled in by
// AuthMiddleware through recordUser.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	userID string
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// recordUser walks wrapped writers and stamps the user on every recorder.
func recordUser(w http.ResponseWriter, userID string) {
	for w != nil {
		if sr, ok := w.(*statusRecorder); ok {
			sr.userID = userID
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}
