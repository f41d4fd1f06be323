package web

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// timedWriter injects the X-Response-Time header right before the status
// line goes out, which is the last moment headers can still change.
type timedWriter struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (w *timedWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.status = status
		ms := time.Since(w.start).Milliseconds()
		w.Header().Set("X-Response-Time", fmt.Sprintf("%d ms", ms))
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *timedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// instrument times every request, stamps X-Response-Time and logs the
// outcome.
func instrument(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &timedWriter{ResponseWriter: w, start: time.Now()}
		next.ServeHTTP(tw, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", tw.status),
			zap.Duration("took", time.Since(tw.start)))
	})
}
