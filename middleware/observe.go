package middleware

import (
	"net/http"
	"strconv"
	"time"

	"farmgate/logging"
	"farmgate/metrics"
	"farmgate/utils"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Observe tags the request with an id and a scoped logger, recovers panics
// and records request metrics under route.
func Observe(base *zap.Logger, route string) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" || len(reqID) > 64 {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			logger := base.With(
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("route", route),
			)
			r = r.WithContext(logging.WithLogger(r.Context(), logger))
			sw := &statusWriter{ResponseWriter: w}

			defer func() {
				if p := recover(); p != nil {
					logger.Error("panic", zap.Any("panic", p), zap.Stack("stack"))
					if sw.status == 0 {
						utils.RespondWithError(sw, http.StatusInternalServerError, "Server error")
					}
				}
				if sw.status == 0 {
					sw.status = http.StatusOK
				}
				elapsed := time.Since(start)
				metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
				metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
				logger.Info("request",
					zap.Int("status", sw.status),
					zap.Duration("duration", elapsed),
					zap.String("remote", r.RemoteAddr),
				)
			}()

			next(sw, r, ps)
		}
	}
}
