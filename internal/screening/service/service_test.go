package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks VerdictCache,PersonStore,EventPublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"screener/internal/screening/cache"
	"screener/internal/screening/identity"
	"screener/internal/screening/models"
	"screener/internal/screening/provider"
	providermocks "screener/internal/screening/provider/mocks"
	"screener/internal/screening/publisher"
	"screener/internal/screening/service/mocks"
	"screener/internal/screening/store"
	dErrors "screener/pkg/domain-errors"
	"screener/pkg/requestcontext"
	"screener/pkg/testutil"
)

// =============================================================================
// Screening Orchestrator Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	provider  *providermocks.MockClient
	cache     *mocks.MockVerdictCache
	store     *mocks.MockPersonStore
	publisher *mocks.MockEventPublisher
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = providermocks.NewMockClient(s.ctrl)
	s.cache = mocks.NewMockVerdictCache(s.ctrl)
	s.store = mocks.NewMockPersonStore(s.ctrl)
	s.publisher = mocks.NewMockEventPublisher(s.ctrl)
	s.provider.EXPECT().ID().Return("ofac").AnyTimes()

	var err error
	s.service, err = New(s.provider, s.cache, s.store, WithCacheTTL(time.Hour))
	s.Require().NoError(err)
}

var (
	abbas = models.Person{ID: 1, Name: "Abu Abbas", DateOfBirth: models.NewDate(1948, time.December, 10), Country: "Yemen"}
	ubaid = models.Person{ID: 2, Name: "Ubaid Noor", DateOfBirth: models.NewDate(1950, time.January, 1), Country: "Egypt"}
	clean = models.Person{ID: 3, Name: "Jane Clean", DateOfBirth: models.NewDate(1990, time.May, 5), Country: "Norway"}
)

func fullMatch(country string) models.RawMatch {
	return models.RawMatch{
		MatchFields: []string{models.FieldName, models.FieldDOB},
		Sanction:    models.Sanction{AddressCountries: []string{country}},
	}
}

func (s *ServiceSuite) expectMiss(p models.Person) {
	s.cache.EXPECT().Get(gomock.Any(), identity.Derive(p)).Return(models.Verdict{}, cache.ErrMiss)
}

func (s *ServiceSuite) expectHit(p models.Person, v models.Verdict) {
	s.cache.EXPECT().Get(gomock.Any(), identity.Derive(p)).Return(v, nil)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("missing provider", func() {
		_, err := New(nil, s.cache, s.store)
		s.ErrorContains(err, "provider client is required")
	})

	s.Run("missing cache", func() {
		_, err := New(s.provider, nil, s.store)
		s.ErrorContains(err, "verdict cache is required")
	})

	s.Run("missing store", func() {
		_, err := New(s.provider, s.cache, nil)
		s.ErrorContains(err, "person store is required")
	})
}

// =============================================================================
// Screen Tests
// =============================================================================

func (s *ServiceSuite) TestSinglePersonFullMatch() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.provider.EXPECT().Screen(gomock.Any(), []models.Person{abbas}).
		Return([]provider.Result{{CaseID: 1, Matches: []models.RawMatch{fullMatch("Yemen")}}}, nil)

	want := models.Verdict{ID: 1, NameMatch: true, DOBMatch: true, CountryMatch: true}
	s.cache.EXPECT().Set(gomock.Any(), identity.Derive(abbas), want, time.Hour).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), []models.ScreenedPerson{{
		Key:      identity.Derive(abbas),
		Identity: identity.Fields(abbas),
		Verdict:  want,
	}}).Return(nil)

	result, err := s.service.Screen(ctx, []models.Person{abbas})
	s.Require().NoError(err)
	s.Equal([]models.Verdict{want}, result.Verdicts)
	s.Equal(0, result.CacheHits)
	s.Equal(1, result.FreshLookups)
	s.NoError(result.PersistErr)
}

func (s *ServiceSuite) TestZeroMatchesStillPersisted() {
	ctx := context.Background()
	s.expectMiss(clean)
	s.provider.EXPECT().Screen(gomock.Any(), []models.Person{clean}).
		Return([]provider.Result{{CaseID: 3}}, nil)

	want := models.Verdict{ID: 3}
	s.cache.EXPECT().Set(gomock.Any(), identity.Derive(clean), want, time.Hour).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(1)).Return(nil)

	result, err := s.service.Screen(ctx, []models.Person{clean})
	s.Require().NoError(err)
	s.Equal([]models.Verdict{want}, result.Verdicts)
}

func (s *ServiceSuite) TestAllCachedNeverCallsProvider() {
	ctx := context.Background()
	s.expectHit(abbas, models.Verdict{NameMatch: true})
	s.expectHit(ubaid, models.Verdict{CountryMatch: true})

	result, err := s.service.Screen(ctx, []models.Person{abbas, ubaid})
	s.Require().NoError(err)
	s.Equal([]models.Verdict{
		{ID: 1, NameMatch: true},
		{ID: 2, CountryMatch: true},
	}, result.Verdicts)
	s.Equal(2, result.CacheHits)
	s.Equal(0, result.FreshLookups)
}

func (s *ServiceSuite) TestMixedBatchSendsOnlyMisses() {
	ctx := context.Background()
	s.expectHit(abbas, models.Verdict{NameMatch: true, DOBMatch: true})
	s.expectMiss(ubaid)
	s.provider.EXPECT().Screen(gomock.Any(), []models.Person{ubaid}).
		Return([]provider.Result{{CaseID: 2}}, nil)
	s.cache.EXPECT().Set(gomock.Any(), identity.Derive(ubaid), models.Verdict{ID: 2}, time.Hour).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(1)).Return(nil)

	result, err := s.service.Screen(ctx, []models.Person{abbas, ubaid})
	s.Require().NoError(err)
	s.Equal([]models.Verdict{
		{ID: 1, NameMatch: true, DOBMatch: true},
		{ID: 2},
	}, result.Verdicts)
	s.Equal(1, result.CacheHits)
	s.Equal(1, result.FreshLookups)
}

func (s *ServiceSuite) TestOutputFollowsInputOrder() {
	ctx := context.Background()
	people := []models.Person{clean, abbas, ubaid}
	s.expectMiss(clean)
	s.expectHit(abbas, models.Verdict{NameMatch: true})
	s.expectMiss(ubaid)
	// Provider answers in a different order than it was asked.
	s.provider.EXPECT().Screen(gomock.Any(), []models.Person{clean, ubaid}).
		Return([]provider.Result{
			{CaseID: 2, Matches: []models.RawMatch{fullMatch("Egypt")}},
			{CaseID: 3},
		}, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Hour).Return(nil).Times(2)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(2)).Return(nil)

	result, err := s.service.Screen(ctx, people)
	s.Require().NoError(err)
	s.Require().Len(result.Verdicts, len(people))
	for i, p := range people {
		s.Equal(p.ID, result.Verdicts[i].ID)
	}
	s.True(result.Verdicts[2].CountryMatch)
	s.False(result.Verdicts[0].NameMatch)
}

func (s *ServiceSuite) TestEmptyBatch() {
	result, err := s.service.Screen(context.Background(), nil)
	s.Require().NoError(err)
	s.Empty(result.Verdicts)
	s.NotNil(result.Verdicts)
}

func (s *ServiceSuite) TestDuplicateIDsRejected() {
	dup := ubaid
	dup.ID = abbas.ID

	_, err := s.service.Screen(context.Background(), []models.Person{abbas, dup})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// =============================================================================
// Failure Tests
// =============================================================================

func (s *ServiceSuite) TestProviderApplicationErrorWritesNothing() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Any()).
		Return(nil, provider.NewApplicationError("ofac", "invalid api key"))

	_, err := s.service.Screen(ctx, []models.Person{abbas})
	var ae *provider.ApplicationError
	s.Require().ErrorAs(err, &ae)
	s.Equal("invalid api key", ae.Message)
	s.Equal(provider.KindApplication, provider.KindOf(err))
}

func (s *ServiceSuite) TestProviderTimeoutFailsBatch() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.expectMiss(ubaid)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Len(2)).
		Return(nil, provider.NewTransportError("ofac", 0, true, context.DeadlineExceeded))

	_, err := s.service.Screen(ctx, []models.Person{abbas, ubaid})
	s.Require().Error(err)
	s.Equal(provider.KindTimeout, provider.KindOf(err))
}

func (s *ServiceSuite) TestProviderMissingCaseIsContractError() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.expectMiss(ubaid)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Len(2)).
		Return([]provider.Result{{CaseID: 1}}, nil)

	_, err := s.service.Screen(ctx, []models.Person{abbas, ubaid})
	s.Require().Error(err)
	s.Equal(provider.KindContract, provider.KindOf(err))
}

func (s *ServiceSuite) TestCorruptCacheEntryFailsRequest() {
	ctx := context.Background()
	corrupt := &cache.CorruptionError{Key: identity.Derive(abbas), Err: errors.New("unexpected end of JSON input")}
	s.cache.EXPECT().Get(gomock.Any(), identity.Derive(abbas)).Return(models.Verdict{}, corrupt)

	_, err := s.service.Screen(ctx, []models.Person{abbas})
	var ce *cache.CorruptionError
	s.Require().ErrorAs(err, &ce)
}

func (s *ServiceSuite) TestPersistenceFailureStillReturnsVerdicts() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Any()).
		Return([]provider.Result{{CaseID: 1, Matches: []models.RawMatch{fullMatch("Yemen")}}}, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).
		Return(&store.PersistenceError{Attempted: 1, Err: errors.New("server selection timeout")})

	result, err := s.service.Screen(ctx, []models.Person{abbas})
	s.Require().NoError(err)
	s.Equal([]models.Verdict{{ID: 1, NameMatch: true, DOBMatch: true, CountryMatch: true}}, result.Verdicts)

	pe, ok := store.AsPersistenceError(result.PersistErr)
	s.Require().True(ok)
	s.Equal(1, pe.Failed())
}

func (s *ServiceSuite) TestCacheWriteFailureIsNotFatal() {
	ctx := context.Background()
	s.expectMiss(abbas)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Any()).Return([]provider.Result{{CaseID: 1}}, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("READONLY"))
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Len(1)).Return(nil)

	result, err := s.service.Screen(ctx, []models.Person{abbas})
	s.Require().NoError(err)
	s.Len(result.Verdicts, 1)
}

// =============================================================================
// Publishing Tests
// =============================================================================

func (s *ServiceSuite) TestPublishesFreshVerdicts() {
	svc, err := New(s.provider, s.cache, s.store, WithPublisher(s.publisher))
	s.Require().NoError(err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-42"), at)

	s.expectHit(abbas, models.Verdict{})
	s.expectMiss(ubaid)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Any()).Return([]provider.Result{{CaseID: 2}}, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(nil)

	var published []publisher.Event
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, events []publisher.Event) error {
			published = events
			return nil
		})

	_, err = svc.Screen(ctx, []models.Person{abbas, ubaid})
	s.Require().NoError(err)
	s.Require().Len(published, 1)
	s.Equal("req-42", published[0].RequestID)
	s.Equal("Ubaid Noor", published[0].Name)
	s.Equal(at, published[0].ScreenedAt)
	s.Equal(identity.Derive(ubaid), published[0].Key())
}

func (s *ServiceSuite) TestPublishFailureIsNotFatal() {
	svc, err := New(s.provider, s.cache, s.store, WithPublisher(s.publisher))
	s.Require().NoError(err)

	s.expectMiss(abbas)
	s.provider.EXPECT().Screen(gomock.Any(), gomock.Any()).Return([]provider.Result{{CaseID: 1}}, nil)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.store.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Return(&publisher.PublishError{Attempted: 1, Failed: 1, Err: errors.New("broker unreachable")})

	result, err := svc.Screen(context.Background(), []models.Person{abbas})
	s.Require().NoError(err)
	s.Len(result.Verdicts, 1)
}

// =============================================================================
// ClearCache Tests
// =============================================================================

func (s *ServiceSuite) TestClearCache() {
	s.Run("clears the identity key", func() {
		s.cache.EXPECT().Clear(gomock.Any(), identity.Derive(abbas)).Return(nil)
		s.NoError(s.service.ClearCache(context.Background(), abbas))
	})

	s.Run("propagates backend errors", func() {
		s.cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))
		s.Error(s.service.ClearCache(context.Background(), abbas))
	})
}

// =============================================================================
// In-memory Adapter Tests
// =============================================================================

func TestScreenWithInMemoryAdapters(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := providermocks.NewMockClient(ctrl)
	client.EXPECT().ID().Return("ofac").AnyTimes()
	client.EXPECT().Screen(gomock.Any(), []models.Person{abbas}).
		Return([]provider.Result{{CaseID: 1, Matches: []models.RawMatch{fullMatch("Yemen")}}}, nil).
		Times(1)

	verdicts := cache.NewInMemoryCache()
	people := store.NewInMemoryStore()
	svc, err := New(client, verdicts, people)
	require.NoError(t, err)
	ctx := context.Background()

	testutil.Given(t, "a person screened once", func(t *testing.T) {
		first, err := svc.Screen(ctx, []models.Person{abbas})
		require.NoError(t, err)
		require.Equal(t, 1, first.FreshLookups)

		testutil.When(t, "the same identity arrives under another request id", func(t *testing.T) {
			again := abbas
			again.ID = 99
			second, err := svc.Screen(ctx, []models.Person{again})
			require.NoError(t, err)

			testutil.Then(t, "the verdict comes from the cache tagged with the new id", func(t *testing.T) {
				assert.Equal(t, 1, second.CacheHits)
				assert.Equal(t, first.Verdicts[0].WithID(99), second.Verdicts[0])
			})
			testutil.Then(t, "the store holds one record", func(t *testing.T) {
				assert.Equal(t, 1, people.Count())
			})
		})
	})
}
