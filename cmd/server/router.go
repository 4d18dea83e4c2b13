package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformmetrics "screener/internal/platform/metrics"
	"screener/pkg/platform/middleware/request"
	"screener/pkg/platform/middleware/requesttime"
)

// registrar mounts a set of routes.
type registrar interface {
	Register(r chi.Router)
}

// newRouter builds the middleware chain shared by every route, then mounts
// /metrics and the given route sets.
func newRouter(log *zap.Logger, httpMetrics *platformmetrics.Metrics, metricsHandler http.Handler, routes ...registrar) chi.Router {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(request.RequestID)
	router.Use(request.ClientIP)
	router.Use(requesttime.Middleware)
	router.Use(request.AccessLog(log))
	router.Use(httpMetrics.Middleware)

	router.Handle("/metrics", metricsHandler)
	for _, r := range routes {
		r.Register(router)
	}
	return router
}
