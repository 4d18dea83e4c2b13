// Package service reconciles a batch of people against the verdict cache, a
// sanctions provider and the person store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"screener/internal/screening/cache"
	"screener/internal/screening/identity"
	"screener/internal/screening/matching"
	"screener/internal/screening/metrics"
	"screener/internal/screening/models"
	"screener/internal/screening/provider"
	"screener/internal/screening/publisher"
	"screener/internal/screening/store"
	dErrors "screener/pkg/domain-errors"
	"screener/pkg/requestcontext"
)

// DefaultConcurrency bounds concurrent cache reads and writes per request.
const DefaultConcurrency = 8

var tracer = otel.Tracer("screener/internal/screening/service")

type VerdictCache interface {
	Get(ctx context.Context, key models.IdentityKey) (models.Verdict, error)
	Set(ctx context.Context, key models.IdentityKey, v models.Verdict, ttl time.Duration) error
	Clear(ctx context.Context, key models.IdentityKey) error
}

type PersonStore interface {
	BulkUpsert(ctx context.Context, records []models.ScreenedPerson) error
}

type EventPublisher interface {
	Publish(ctx context.Context, events []publisher.Event) error
}

// Result is the outcome of one Screen call. Verdicts are in input order.
// PersistErr is set when fresh verdicts could not be stored; the verdicts are
// still valid.
type Result struct {
	Verdicts     []models.Verdict
	CacheHits    int
	FreshLookups int
	PersistErr   error
}

// Service is the screening orchestrator. It holds no per-request state.
type Service struct {
	provider    provider.Client
	cache       VerdictCache
	store       PersonStore
	publisher   EventPublisher
	logger      *zap.Logger
	metrics     *metrics.Metrics
	ttl         time.Duration
	concurrency int
}

type Option func(s *Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher enables screening.completed events for fresh verdicts.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithCacheTTL sets the lifetime of cached verdicts.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs a Service. The provider, cache and store are required.
func New(client provider.Client, verdicts VerdictCache, people PersonStore, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, errors.New("provider client is required")
	}
	if verdicts == nil {
		return nil, errors.New("verdict cache is required")
	}
	if people == nil {
		return nil, errors.New("person store is required")
	}
	s := &Service{
		provider:    client,
		cache:       verdicts,
		store:       people,
		ttl:         cache.DefaultTTL,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Screen returns one verdict per person, in input order. Cached people are
// answered from the cache; everyone else is sent to the provider in a single
// call, and their fresh verdicts are cached, stored and published. Cache and
// provider errors fail the request; storage and publishing errors do not.
func (s *Service) Screen(ctx context.Context, people []models.Person) (*Result, error) {
	ctx, span := tracer.Start(ctx, "screening.Screen", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.Int("screening.people", len(people)))

	start := time.Now()
	defer func() {
		s.metrics.ObserveScreenLatency(time.Since(start))
	}()

	result, err := s.screen(ctx, people)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "screening failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("screening.cache_hits", result.CacheHits),
		attribute.Int("screening.fresh", result.FreshLookups),
	)
	s.logger.Info("screening complete",
		zap.String("request_id", requestcontext.RequestID(ctx)),
		zap.Int("people", len(people)),
		zap.Int("cache_hits", result.CacheHits),
		zap.Int("fresh", result.FreshLookups),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

func (s *Service) screen(ctx context.Context, people []models.Person) (*Result, error) {
	if err := ensureUniqueIDs(people); err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return &Result{Verdicts: []models.Verdict{}}, nil
	}

	keys := make([]models.IdentityKey, len(people))
	for i, p := range people {
		keys[i] = identity.Derive(p)
	}

	cached, err := s.partition(ctx, people, keys)
	if err != nil {
		return nil, err
	}

	var misses []int
	for i := range people {
		if cached[i] == nil {
			misses = append(misses, i)
		}
	}
	result := &Result{
		CacheHits:    len(people) - len(misses),
		FreshLookups: len(misses),
	}
	s.metrics.AddScreened("cache", result.CacheHits)

	fresh := make(map[int]models.Verdict, len(misses))
	if len(misses) > 0 {
		screened, err := s.query(ctx, people, keys, misses)
		if err != nil {
			return nil, err
		}
		for _, i := range misses {
			fresh[i] = screened[i].Verdict
		}
		s.metrics.AddScreened("provider", len(misses))

		records := make([]models.ScreenedPerson, 0, len(misses))
		for _, i := range misses {
			records = append(records, screened[i])
		}
		s.refresh(ctx, records)
		result.PersistErr = s.persist(ctx, records)
		s.publish(ctx, records)
	}

	result.Verdicts = make([]models.Verdict, len(people))
	for i := range people {
		if cached[i] != nil {
			result.Verdicts[i] = *cached[i]
			continue
		}
		result.Verdicts[i] = fresh[i]
	}
	return result, nil
}

// partition looks every key up in the cache. A nil entry is a miss. Any error
// other than a miss, including a corrupt entry, fails the request.
func (s *Service) partition(ctx context.Context, people []models.Person, keys []models.IdentityKey) ([]*models.Verdict, error) {
	cached := make([]*models.Verdict, len(people))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range people {
		g.Go(func() error {
			v, err := s.cache.Get(gctx, keys[i])
			if err != nil {
				if cache.IsMiss(err) {
					s.metrics.RecordCacheLookup("miss")
					return nil
				}
				s.metrics.RecordCacheLookup("error")
				return err
			}
			s.metrics.RecordCacheLookup("hit")
			v = v.WithID(people[i].ID)
			cached[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("verdict cache lookup failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.Error(err),
		)
		return nil, err
	}
	return cached, nil
}

// query sends the missed people to the provider in one call and reduces each
// result to a verdict. The returned map is indexed by input position.
func (s *Service) query(ctx context.Context, people []models.Person, keys []models.IdentityKey, misses []int) (map[int]models.ScreenedPerson, error) {
	batch := make([]models.Person, 0, len(misses))
	for _, i := range misses {
		batch = append(batch, people[i])
	}

	start := time.Now()
	results, err := s.provider.Screen(ctx, batch)
	s.metrics.ObserveProviderLatency(s.provider.ID(), time.Since(start))
	if err != nil {
		kind := provider.KindOf(err)
		s.metrics.IncProviderError(s.provider.ID(), string(kind))
		s.logger.Error("provider screening failed",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.String("provider", s.provider.ID()),
			zap.String("kind", string(kind)),
			zap.Int("cases", len(batch)),
			zap.Error(err),
		)
		return nil, err
	}

	byCase := make(map[int64]provider.Result, len(results))
	for _, r := range results {
		byCase[r.CaseID] = r
	}

	screened := make(map[int]models.ScreenedPerson, len(misses))
	for _, i := range misses {
		p := people[i]
		r, ok := byCase[p.ID]
		if !ok {
			err := provider.NewContractError(s.provider.ID(), fmt.Sprintf("no result for case %d", p.ID))
			s.metrics.IncProviderError(s.provider.ID(), string(provider.KindContract))
			return nil, err
		}
		v := matching.Reduce(r.Matches, p.Country).WithID(p.ID)
		s.recordFieldMatches(v)
		screened[i] = models.ScreenedPerson{
			Key:      keys[i],
			Identity: identity.Fields(p),
			Verdict:  v,
		}
	}
	return screened, nil
}

// refresh writes fresh verdicts to the cache. Failures are logged and counted
// but do not fail the request.
func (s *Service) refresh(ctx context.Context, records []models.ScreenedPerson) {
	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, r := range records {
		g.Go(func() error {
			if err := s.cache.Set(ctx, r.Key, r.Verdict, s.ttl); err != nil {
				failed.Add(1)
				s.logger.Warn("failed to cache verdict",
					zap.String("request_id", requestcontext.RequestID(ctx)),
					zap.Int64("person_id", r.Verdict.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.metrics.IncCacheWriteFailures(int(failed.Load()))
}

// persist upserts fresh verdicts. The error is returned for the caller to
// report; the verdicts are still served.
func (s *Service) persist(ctx context.Context, records []models.ScreenedPerson) error {
	err := s.store.BulkUpsert(ctx, records)
	if err == nil {
		return nil
	}
	failed := len(records)
	if pe, ok := store.AsPersistenceError(err); ok {
		failed = pe.Failed()
	}
	s.metrics.IncPersistFailures(failed)
	s.logger.Warn("failed to persist screened people",
		zap.String("request_id", requestcontext.RequestID(ctx)),
		zap.Int("attempted", len(records)),
		zap.Int("failed", failed),
		zap.Error(err),
	)
	return err
}

func (s *Service) publish(ctx context.Context, records []models.ScreenedPerson) {
	if s.publisher == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	now := requestcontext.Now(ctx).UTC()
	events := make([]publisher.Event, 0, len(records))
	for _, r := range records {
		events = append(events, publisher.NewEvent(requestID, s.provider.ID(), r, now))
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		failed := len(events)
		var pe *publisher.PublishError
		if errors.As(err, &pe) {
			failed = pe.Failed
		}
		s.metrics.IncPublishFailures(failed)
		s.logger.Warn("failed to publish screening events",
			zap.String("request_id", requestID),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

func (s *Service) recordFieldMatches(v models.Verdict) {
	if v.NameMatch {
		s.metrics.RecordFieldMatch("name")
	}
	if v.DOBMatch {
		s.metrics.RecordFieldMatch("dob")
	}
	if v.CountryMatch {
		s.metrics.RecordFieldMatch("country")
	}
}

// ClearCache drops the cached verdict for p's identity. Clearing an identity
// with no cached verdict is not an error.
func (s *Service) ClearCache(ctx context.Context, p models.Person) error {
	key := identity.Derive(p)
	if err := s.cache.Clear(ctx, key); err != nil {
		s.logger.Error("failed to clear cached verdict",
			zap.String("request_id", requestcontext.RequestID(ctx)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("cleared cached verdict",
		zap.String("request_id", requestcontext.RequestID(ctx)),
		zap.Int64("person_id", p.ID),
	)
	return nil
}

// ensureUniqueIDs rejects batches that reuse a request id, since verdicts are
// correlated back to people by id.
func ensureUniqueIDs(people []models.Person) error {
	seen := make(map[int64]struct{}, len(people))
	for _, p := range people {
		if _, ok := seen[p.ID]; ok {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate person id %d", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
