package store_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"paylesscars/internal/events"
	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/repository"
	"paylesscars/internal/negotiation/service"
	"paylesscars/internal/negotiation/store"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

var errNetwork = errors.New("connection reset by peer")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAPI forwards to the in-process service and lets tests count calls,
// inject failures and hold a call open until released.
type fakeAPI struct {
	ports.NegotiationAPI

	mu      sync.Mutex
	calls   map[string]int
	fail    map[string]error
	gates   map[string]chan struct{}
	entered map[string]chan struct{}
}

func newFakeAPI(api ports.NegotiationAPI) *fakeAPI {
	return &fakeAPI{
		NegotiationAPI: api,
		calls:          make(map[string]int),
		fail:           make(map[string]error),
		gates:          make(map[string]chan struct{}),
		entered:        make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) failWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

// hold blocks method until the returned release func is called. The
// returned channel receives once the call has started.
func (f *fakeAPI) hold(method string) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.gates[method] = gate
	f.entered[method] = entered
	return entered, sync.OnceFunc(func() { close(gate) })
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) before(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	err := f.fail[method]
	gate := f.gates[method]
	entered := f.entered[method]
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAPI) List(ctx context.Context, query ports.ListQuery) (ports.Page, error) {
	if err := f.before(ctx, "List"); err != nil {
		return ports.Page{}, err
	}
	return f.NegotiationAPI.List(ctx, query)
}

func (f *fakeAPI) Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	if err := f.before(ctx, "Get"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.Get(ctx, id)
}

func (f *fakeAPI) Create(ctx context.Context, input ports.CreateInput) (domain.Negotiation, error) {
	if err := f.before(ctx, "Create"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.Create(ctx, input)
}

func (f *fakeAPI) SubmitOffer(ctx context.Context, id uuid.UUID, input ports.OfferInput) (domain.Negotiation, error) {
	if err := f.before(ctx, "SubmitOffer"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.SubmitOffer(ctx, id, input)
}

func (f *fakeAPI) Accept(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	if err := f.before(ctx, "Accept"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.Accept(ctx, id)
}

func (f *fakeAPI) Reject(ctx context.Context, id uuid.UUID, reason *string) (domain.Negotiation, error) {
	if err := f.before(ctx, "Reject"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.Reject(ctx, id, reason)
}

func (f *fakeAPI) Cancel(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	if err := f.before(ctx, "Cancel"); err != nil {
		return domain.Negotiation{}, err
	}
	return f.NegotiationAPI.Cancel(ctx, id)
}

type memorySnapshots struct {
	mu    sync.Mutex
	saved map[uuid.UUID][]domain.Negotiation
}

func (m *memorySnapshots) Load(_ context.Context, userID uuid.UUID) ([]domain.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saved[userID]), nil
}

func (m *memorySnapshots) Save(_ context.Context, userID uuid.UUID, negotiations []domain.Negotiation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[uuid.UUID][]domain.Negotiation)
	}
	m.saved[userID] = slices.Clone(negotiations)
	return nil
}

type storeSuite struct {
	suite.Suite

	clock   *clock
	bus     *events.InMemoryBus
	svc     *service.Service
	vehicle domain.VehicleRef
	buyer   domain.PartyRef
	dealer  domain.PartyRef

	buyerAPI *fakeAPI
	store    *store.Store

	mu      sync.Mutex
	changes []events.CacheChange
}

func TestStoreSuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(storeSuite))
}

func (s *storeSuite) SetupTest() {
	s.clock = &clock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	s.bus = events.NewInMemoryBus(nil)
	s.svc = service.New(repository.NewMemory(), s.bus, 48*time.Hour, nil, service.WithClock(s.clock.Now))

	s.dealer = domain.PartyRef{ID: uuid.New(), DisplayName: gofakeit.Company()}
	s.buyer = domain.PartyRef{ID: uuid.New()}
	s.vehicle = domain.VehicleRef{
		ID:          uuid.New(),
		Title:       gofakeit.CarModel(),
		AskingPrice: domain.Money{Amount: decimal.NewFromInt(32000), Currency: currency.EUR},
		DealerID:    s.dealer.ID,
		DealerName:  s.dealer.DisplayName,
	}
	s.Require().NoError(s.svc.UpsertVehicle(context.Background(), s.vehicle))

	s.changes = nil
	s.bus.Subscribe(events.NameNegotiationCacheChanged, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.changes = append(s.changes, e.(events.NegotiationCacheChanged).Change)
		return nil
	}))

	s.buyerAPI = newFakeAPI(s.svc.As(s.buyer))
	s.store = store.New(s.buyerAPI, s.buyer.ID, store.WithClock(s.clock.Now), store.WithEventBus(s.bus))
}

func (s *storeSuite) TearDownTest() {
	s.bus.Wait()
}

func (s *storeSuite) cacheChanges() []events.CacheChange {
	s.bus.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.changes)
}

// open creates a negotiation through the buyer's store.
func (s *storeSuite) open() domain.Negotiation {
	n, err := s.store.CreateNegotiation(context.Background(), s.vehicle.ID, eur("30000"), nil)
	s.Require().NoError(err)
	return n
}

// dealerCounters answers with a dealer counter-offer behind the buyer's back.
func (s *storeSuite) dealerCounters(id uuid.UUID, amount string) domain.Negotiation {
	n, err := s.svc.SubmitOffer(context.Background(), s.dealer.ID, id, ports.OfferInput{Amount: eur(amount)})
	s.Require().NoError(err)
	return n
}

func (s *storeSuite) TestCreatePrependsAndDefaultsCurrency() {
	t := s.T()
	ctx := t.Context()

	first := s.open()
	second, err := s.store.CreateNegotiation(ctx, s.vehicle.ID, domain.Money{Amount: decimal.NewFromInt(29000)}, nil)
	require.NoError(t, err)
	assert.Equal(t, currency.EUR, second.Currency())

	list := s.store.Negotiations()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func (s *storeSuite) TestCreateRejectsNonPositiveAmountLocally() {
	t := s.T()

	_, err := s.store.CreateNegotiation(t.Context(), s.vehicle.ID, eur("0"), nil)
	require.Error(t, err)
	assert.Equal(t, store.ValidationError, store.ClassOf(err))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Zero(t, s.buyerAPI.count("Create"))
	assert.Equal(t, err, s.store.State().Err)
}

func (s *storeSuite) TestCancelFailureRollsBackToExactRecord() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	before, ok := s.store.Negotiation(n.ID)
	require.True(t, ok)
	beforeList := s.store.Negotiations()

	s.buyerAPI.failWith("Cancel", errNetwork)
	entered, release := s.buyerAPI.hold("Cancel")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := s.store.CancelNegotiation(ctx, n.ID)
		done <- err
	}()
	<-entered

	inFlight, ok := s.store.Negotiation(n.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCancelled, inFlight.Status)
	list := s.store.Negotiations()
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusCancelled, list[0].Status)

	release()
	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, store.FetchError, store.ClassOf(err))

	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.True(t, storeErr.Retryable())

	after, ok := s.store.Negotiation(n.ID)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(before, after, moneyComparers, cmpopts.EquateEmpty()))
	assert.Empty(t, cmp.Diff(beforeList, s.store.Negotiations(), moneyComparers, cmpopts.EquateEmpty()))

	state := s.store.State()
	assert.False(t, state.Loading)
	assert.Equal(t, err, state.Err)
	assert.Empty(t, state.Pending)

	changes := s.cacheChanges()
	assert.Contains(t, changes, events.CacheOptimistic)
	assert.Contains(t, changes, events.CacheRolledBack)
	assert.NotContains(t, changes, events.CacheCommitted)
}

func (s *storeSuite) TestConflictForcesRefetchBeforeNextAction() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.dealerCounters(n.ID, "31000")
	_, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)

	_, err = s.svc.Reject(ctx, s.dealer.ID, n.ID, nil)
	require.NoError(t, err)

	_, err = s.store.AcceptOffer(ctx, n.ID)
	require.Error(t, err)
	assert.Equal(t, store.ConflictError, store.ClassOf(err))
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	view, ok := s.store.View(n.ID, s.clock.Now())
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, view.Negotiation.Status, "rolled back to the last known record")
	assert.True(t, view.NeedsRefresh)
	assert.False(t, view.MyTurn)
	assert.Empty(t, view.Actions)

	gets := s.buyerAPI.count("Get")
	_, err = s.store.AcceptOffer(ctx, n.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, gets+1, s.buyerAPI.count("Get"), "record is re-fetched before acting again")
	assert.Equal(t, 1, s.buyerAPI.count("Accept"), "the refused call is not repeated")

	view, _ = s.store.View(n.ID, s.clock.Now())
	assert.Equal(t, domain.StatusRejected, view.Negotiation.Status)
	assert.False(t, view.NeedsRefresh)
}

func (s *storeSuite) TestCounterConflictMarksRecordStale() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.dealerCounters(n.ID, "31500")
	_, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)
	_, err = s.svc.Reject(ctx, s.dealer.ID, n.ID, ptr("sold elsewhere"))
	require.NoError(t, err)

	_, err = s.store.SubmitOffer(ctx, n.ID, eur("31000"), nil)
	require.Error(t, err)
	assert.Equal(t, store.ConflictError, store.ClassOf(err))

	view, ok := s.store.View(n.ID, s.clock.Now())
	require.True(t, ok)
	assert.True(t, view.NeedsRefresh)
	assert.Empty(t, view.Actions)

	fresh, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, fresh.Status)
	view, _ = s.store.View(n.ID, s.clock.Now())
	assert.False(t, view.NeedsRefresh)
}

func (s *storeSuite) TestAcceptCommitsServerValue() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.dealerCounters(n.ID, "31000")
	_, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)

	accepted, err := s.store.AcceptOffer(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedPrice)
	assert.True(t, accepted.AcceptedPrice.Equal(eur("31000")))
	assert.Equal(t, int64(3), accepted.Version)

	cached, _ := s.store.Negotiation(n.ID)
	assert.Equal(t, accepted.Version, cached.Version)
	assert.Contains(t, s.cacheChanges(), events.CacheCommitted)
}

func (s *storeSuite) TestRejectTwiceMakesOneRemoteCall() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	_, err := s.store.RejectNegotiation(ctx, n.ID, ptr("too far apart"))
	require.NoError(t, err)

	_, err = s.store.RejectNegotiation(ctx, n.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, 1, s.buyerAPI.count("Reject"))

	cached, _ := s.store.Negotiation(n.ID)
	require.NotNil(t, cached.RejectionReason)
	assert.Equal(t, "too far apart", *cached.RejectionReason)
}

func (s *storeSuite) TestAcceptingOwnOfferNeverReachesServer() {
	t := s.T()

	n := s.open()
	_, err := s.store.AcceptOffer(t.Context(), n.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCannotAcceptOwnOffer)
	assert.Equal(t, store.ValidationError, store.ClassOf(err))
	assert.Zero(t, s.buyerAPI.count("Accept"))

	cached, _ := s.store.Negotiation(n.ID)
	assert.Equal(t, domain.StatusActive, cached.Status)
}

func (s *storeSuite) TestNonParticipantGetsAuthError() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	stranger := uuid.New()
	other := store.New(newFakeAPI(s.svc.As(domain.PartyRef{ID: stranger})), stranger)

	_, err := other.GetOne(ctx, n.ID)
	require.Error(t, err)
	assert.Equal(t, store.AuthError, store.ClassOf(err))
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = other.RejectNegotiation(ctx, n.ID, nil)
	assert.Equal(t, store.AuthError, store.ClassOf(err))
}

func (s *storeSuite) TestDealerCannotCancel() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	dealerAPI := newFakeAPI(s.svc.As(s.dealer))
	dealer := store.New(dealerAPI, s.dealer.ID, store.WithClock(s.clock.Now))

	_, err := dealer.CancelNegotiation(ctx, n.ID)
	require.Error(t, err)
	assert.Equal(t, store.AuthError, store.ClassOf(err))
	assert.Equal(t, 1, dealerAPI.count("Get"), "uncached record is fetched once")
	assert.Zero(t, dealerAPI.count("Cancel"))
}

func (s *storeSuite) TestStaleRecordIsRefetchedBeforeActing() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.dealerCounters(n.ID, "31500")
	s.clock.Advance(49 * time.Hour)

	view, ok := s.store.View(n.ID, s.clock.Now())
	require.True(t, ok)
	assert.True(t, view.NeedsRefresh)
	assert.Empty(t, view.Actions)
	assert.False(t, view.MyTurn)

	_, err := s.store.AcceptOffer(ctx, n.ID)
	require.Error(t, err)
	assert.Equal(t, 1, s.buyerAPI.count("Get"))
	assert.Zero(t, s.buyerAPI.count("Accept"))

	cached, _ := s.store.Negotiation(n.ID)
	assert.Equal(t, domain.StatusExpired, cached.Status)
}

func (s *storeSuite) TestInFlightGuard() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.dealerCounters(n.ID, "31000")
	_, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)

	entered, release := s.buyerAPI.hold("Accept")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := s.store.AcceptOffer(ctx, n.ID)
		done <- err
	}()
	<-entered

	state := s.store.State()
	assert.True(t, state.Loading)
	assert.Equal(t, []uuid.UUID{n.ID}, state.Pending)

	optimistic, _ := s.store.Negotiation(n.ID)
	assert.Equal(t, domain.StatusAccepted, optimistic.Status)

	_, err = s.store.RejectNegotiation(ctx, n.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrOperationInFlight)
	assert.Equal(t, store.ConflictError, store.ClassOf(err))
	assert.Zero(t, s.buyerAPI.count("Reject"))

	release()
	require.NoError(t, <-done)
	assert.Empty(t, s.store.State().Pending)
}

func (s *storeSuite) TestNewerWriteSurvivesRollback() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	s.buyerAPI.failWith("Cancel", errNetwork)
	entered, release := s.buyerAPI.hold("Cancel")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := s.store.CancelNegotiation(ctx, n.ID)
		done <- err
	}()
	<-entered

	countered := s.dealerCounters(n.ID, "31800")
	_, err := s.store.GetOne(ctx, n.ID)
	require.NoError(t, err)

	release()
	require.ErrorIs(t, <-done, errNetwork)

	cached, _ := s.store.Negotiation(n.ID)
	assert.Equal(t, domain.StatusActive, cached.Status)
	assert.Len(t, cached.Offers, 2, "the refetched record is kept, not the pre-cancel snapshot")
	assert.Equal(t, countered.Version, cached.Version)
	assert.NotContains(t, s.cacheChanges(), events.CacheRolledBack)
}

func (s *storeSuite) TestCountersAreStrictlyOrdered() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	for _, amount := range []string{"30500", "30750"} {
		_, err := s.store.SubmitOffer(ctx, n.ID, eur(amount), nil)
		require.NoError(t, err)
	}

	cached, _ := s.store.Negotiation(n.ID)
	require.Len(t, cached.Offers, 3)
	for i := 1; i < len(cached.Offers); i++ {
		assert.True(t, cached.Offers[i].CreatedAt.After(cached.Offers[i-1].CreatedAt))
		assert.Greater(t, cached.Offers[i].ID, cached.Offers[i-1].ID)
	}
	current, _ := cached.CurrentOffer()
	assert.True(t, current.Amount.Equal(eur("30750")))
}

func (s *storeSuite) TestSubmitOfferValidatesLocally() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	_, err := s.store.SubmitOffer(ctx, n.ID, domain.Money{Amount: decimal.NewFromInt(100), Currency: currency.USD}, nil)
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	_, err = s.store.SubmitOffer(ctx, n.ID, eur("-5"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Zero(t, s.buyerAPI.count("SubmitOffer"))
}

func (s *storeSuite) TestListFailureLeavesCacheUntouched() {
	t := s.T()
	ctx := t.Context()

	s.open()
	s.open()
	before, err := s.store.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, before, 2)

	s.buyerAPI.failWith("List", errNetwork)
	_, err = s.store.List(ctx, store.ListOptions{})
	require.Error(t, err)
	assert.Equal(t, store.FetchError, store.ClassOf(err))

	assert.Empty(t, cmp.Diff(before, s.store.Negotiations(), moneyComparers, cmpopts.EquateEmpty()))
	assert.Equal(t, err, s.store.State().Err)
}

func (s *storeSuite) TestListWalksEveryPage() {
	t := s.T()
	ctx := t.Context()

	paged := store.New(s.buyerAPI, s.buyer.ID, store.WithPageSize(2), store.WithClock(s.clock.Now))
	for range 5 {
		s.clock.Advance(time.Minute)
		_, err := paged.CreateNegotiation(ctx, s.vehicle.ID, eur("30000"), nil)
		require.NoError(t, err)
	}

	items, err := paged.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, 3, s.buyerAPI.count("List"))
	assert.True(t, slices.IsSortedFunc(items, func(a, b domain.Negotiation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	}), "newest first")

	rejected := domain.StatusRejected
	items, err = paged.List(ctx, store.ListOptions{Status: &rejected})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, paged.Negotiations())
}

func (s *storeSuite) TestConcurrentGetOneSharesRequest() {
	t := s.T()
	ctx := t.Context()

	n := s.open()
	entered, release := s.buyerAPI.hold("Get")

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.GetOne(ctx, n.ID)
			assert.NoError(t, err)
		}()
	}
	<-entered
	// the second caller joins the in-flight request
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, s.buyerAPI.count("Get"))
}

func (s *storeSuite) TestSnapshotRoundTrip() {
	t := s.T()
	ctx := t.Context()

	snapshots := &memorySnapshots{}
	first := store.New(s.buyerAPI, s.buyer.ID, store.WithSnapshotStore(snapshots), store.WithClock(s.clock.Now))
	n, err := first.CreateNegotiation(ctx, s.vehicle.ID, eur("30000"), nil)
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	_, err = first.GetOne(ctx, n.ID)
	assert.ErrorIs(t, err, store.ErrStoreClosed)

	second := store.New(s.buyerAPI, s.buyer.ID, store.WithSnapshotStore(snapshots), store.WithClock(s.clock.Now))
	require.NoError(t, second.Warm(ctx))
	warmed := second.Negotiations()
	require.Len(t, warmed, 1)
	assert.Equal(t, n.ID, warmed[0].ID)

	s.clock.Advance(49 * time.Hour)
	view, ok := second.View(n.ID, s.clock.Now())
	require.True(t, ok)
	assert.True(t, view.NeedsRefresh, "warmed records are still checked for staleness")
}

func eur(amount string) domain.Money {
	return domain.MustMoney(amount, "EUR")
}

func ptr[T any](v T) *T { return &v }

var moneyComparers = cmp.Options{
	cmp.Comparer(func(x, y currency.Unit) bool { return x.String() == y.String() }),
	cmp.Comparer(func(x, y decimal.Decimal) bool { return x.Equal(y) }),
}
