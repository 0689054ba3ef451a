// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
)

// Handlers holds one handler per route. A nil handler answers 404, except
// Passthrough, which answers 502.
type Handlers struct {
	ShareTarget http.Handler
	Shared      http.Handler
	Verify      http.Handler
	Sync        http.Handler
	Cache       http.Handler
	Passthrough http.Handler
}

// NewRouter builds the edge router. Every matcher defers to Classify so
// the router and Classify can never disagree.
func NewRouter(h Handlers, logger *zap.Logger) *mux.Router {
	logger = logging.OrNop(logger)
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.Path(SyncPrefix + "{tag}").MatcherFunc(is(RouteSync)).Handler(orNotFound(h.Sync))
	r.MatcherFunc(is(RouteShareTarget)).Handler(orNotFound(h.ShareTarget))
	r.MatcherFunc(is(RouteShared)).Handler(orNotFound(h.Shared))
	r.MatcherFunc(is(RouteVerify)).Handler(orNotFound(h.Verify))
	r.MatcherFunc(is(RouteCache)).Handler(orNotFound(h.Cache))

	passthrough := h.Passthrough
	if passthrough == nil {
		passthrough = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
	}
	r.PathPrefix("/").Handler(passthrough)
	return r
}

func is(route Route) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		return Classify(r) == route
	}
}

func orNotFound(h http.Handler) http.Handler {
	if h == nil {
		return http.NotFoundHandler()
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Stringer("route", Classify(r)),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
