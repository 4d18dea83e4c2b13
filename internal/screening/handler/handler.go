// Package handler exposes the screening service over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"screener/internal/screening/cache"
	"screener/internal/screening/models"
	"screener/internal/screening/provider"
	"screener/internal/screening/service"
	dErrors "screener/pkg/domain-errors"
	"screener/pkg/platform/httputil"
	"screener/pkg/requestcontext"
)

// DefaultMaxBatchSize caps the number of people in one request.
const DefaultMaxBatchSize = 100

// healthTimeout bounds each dependency check.
const healthTimeout = 2 * time.Second

// Service defines the screening operations the handler needs.
type Service interface {
	Screen(ctx context.Context, people []models.Person) (*service.Result, error)
	ClearCache(ctx context.Context, p models.Person) error
}

// HealthChecker is a dependency that can report its own health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler wires screening endpoints to the screening service.
type Handler struct {
	service      Service
	logger       *zap.Logger
	maxBatchSize int
	checks       map[string]HealthChecker
}

// New constructs a screening handler. checks are probed by GET /healthz.
func New(svc Service, logger *zap.Logger, maxBatchSize int, checks map[string]HealthChecker) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Handler{
		service:      svc,
		logger:       logger,
		maxBatchSize: maxBatchSize,
		checks:       checks,
	}
}

// Register mounts screening endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.HandleRoot)
	r.Get("/healthz", h.HandleHealth)
	r.Route("/api/v1/screen", func(r chi.Router) {
		r.Post("/", h.HandleScreen)
		r.Delete("/cache", h.HandleClearCache)
	})
}

// HandleRoot handles GET /.
func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "OFAC SDN Screener Service"})
}

// HandleScreen handles POST /api/v1/screen requests.
func (h *Handler) HandleScreen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ScreenRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	if len(*req) > h.maxBatchSize {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("at most %d people can be screened per request", h.maxBatchSize)))
		return
	}

	result, err := h.service.Screen(ctx, req.People())
	if err != nil {
		h.logger.Error("screening failed",
			zap.String("request_id", requestID),
			zap.Int("people", len(*req)),
			zap.Error(err),
		)
		httputil.WriteError(w, toDomainError(err))
		return
	}
	if result.PersistErr != nil {
		h.logger.Warn("screening verdicts not durably stored",
			zap.String("request_id", requestID),
			zap.Error(result.PersistErr),
		)
	}

	h.logger.Info("screening request served",
		zap.String("request_id", requestID),
		zap.Int("people", len(*req)),
		zap.Int("cache_hits", result.CacheHits),
		zap.Int("fresh", result.FreshLookups),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	httputil.WriteJSON(w, http.StatusOK, FromVerdicts(result.Verdicts))
}

// HandleClearCache handles DELETE /api/v1/screen/cache requests.
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ClearCacheRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	if err := h.service.ClearCache(ctx, req.Person()); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "verdict cache unavailable"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := h.checks[name].Health(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// toDomainError maps screening failures onto HTTP-facing error codes.
func toDomainError(err error) error {
	if dErrors.Is(err) {
		return err
	}
	var te *provider.TransportError
	if errors.As(err, &te) {
		msg := "sanctions provider unavailable"
		if te.Timeout() {
			msg = "sanctions provider timed out"
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	var ae *provider.ApplicationError
	if errors.As(err, &ae) {
		if ae.Contract() {
			return dErrors.Wrap(err, dErrors.CodeBadGateway, "sanctions provider returned an invalid response")
		}
		return dErrors.Wrap(err, dErrors.CodeBadGateway, ae.Message)
	}
	var ce *cache.CorruptionError
	if errors.As(err, &ce) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "verdict cache entry is corrupt")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "screening failed")
}
