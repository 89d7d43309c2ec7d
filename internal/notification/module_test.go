package notification

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paylesscars/internal/events"
	apphttp "paylesscars/internal/http"
	"paylesscars/internal/notification/sse"
	"paylesscars/platform/httpkit"
	"paylesscars/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscribe opens a stream for userID and decodes the event names it receives.
func subscribe(t *testing.T, m *Module, userID uuid.UUID) <-chan sse.Event {
	t.Helper()

	srv := httptest.NewServer(streamEngine(m, userID))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	out := make(chan sse.Event, 8)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			name, ok := strings.CutPrefix(scanner.Text(), "event:")
			if !ok {
				continue
			}
			out <- sse.Event{Type: sse.EventType(name)}
		}
	}()

	require.Eventually(t, func() bool { return m.SSE().Connected(userID) == 1 }, time.Second, time.Millisecond)
	return out
}

func streamEngine(m *Module, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/events", func(c *gin.Context) {
		httpkit.SetIdentity(c, httpkit.NewIdentity(userID))
		c.Next()
	}, m.SSE().Handler())
	return engine
}

func next(t *testing.T, ch <-chan sse.Event) sse.Event {
	t.Helper()

	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return sse.Event{}
	}
}

func TestStatusChangeReachesBothParticipants(t *testing.T) {
	m := New(logger.Discard())
	t.Cleanup(m.Close)

	buyer, dealer := uuid.New(), uuid.New()
	buyerStream := subscribe(t, m, buyer)
	dealerStream := subscribe(t, m, dealer)
	assert.Equal(t, "connected", string(next(t, buyerStream).Type))
	assert.Equal(t, "connected", string(next(t, dealerStream).Type))

	bus := events.NewInMemoryBus(nil)
	m.RegisterHandlers(bus)
	require.NoError(t, bus.PublishSync(context.Background(), events.NegotiationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		NegotiationID: uuid.New(),
		BuyerID:       buyer,
		DealerID:      dealer,
		From:          "active",
		To:            "accepted",
	}))

	assert.Equal(t, sse.EventNegotiationStatus, next(t, buyerStream).Type)
	assert.Equal(t, sse.EventNegotiationStatus, next(t, dealerStream).Type)
}

func TestOffersOnlyReachParticipants(t *testing.T) {
	m := New(logger.Discard())
	t.Cleanup(m.Close)

	buyer, dealer, stranger := uuid.New(), uuid.New(), uuid.New()
	strangerStream := subscribe(t, m, stranger)
	next(t, strangerStream)

	err := m.Handle(context.Background(), events.OfferSubmitted{
		BaseEvent:     events.NewBaseEvent(),
		NegotiationID: uuid.New(),
		BuyerID:       buyer,
		DealerID:      dealer,
		OfferedBy:     "dealer",
		Amount:        decimal.RequireFromString("15250"),
		Currency:      "EUR",
	})
	require.NoError(t, err)

	select {
	case e := <-strangerStream:
		t.Fatalf("stranger received %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutStreams(t *testing.T) {
	hub := sse.New(nil)
	assert.Zero(t, hub.Publish(uuid.New(), sse.Event{Type: sse.EventOfferSubmitted}))
}

func TestClosedHubRefusesStreams(t *testing.T) {
	m := New(nil)
	m.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	streamEngine(m, uuid.New()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleIgnoresUnknownEvents(t *testing.T) {
	m := New(nil)
	assert.NoError(t, m.Handle(context.Background(), events.NegotiationCacheChanged{Change: events.CacheRefreshed}))
}

func TestAppSubscribesAndClosesModule(t *testing.T) {
	m := New(nil)
	bus := events.NewInMemoryBus(nil)
	app := &apphttp.App{Logger: logger.Discard(), EventBus: bus, Modules: []apphttp.Module{m}}

	app.SubscribeModules()
	userID := uuid.New()
	stream := subscribe(t, m, userID)
	next(t, stream)

	require.NoError(t, bus.PublishSync(context.Background(), events.NegotiationCreated{
		BaseEvent:     events.NewBaseEvent(),
		NegotiationID: uuid.New(),
		BuyerID:       userID,
		DealerID:      uuid.New(),
		Amount:        decimal.RequireFromString("9000"),
		Currency:      "GBP",
	}))
	assert.Equal(t, sse.EventNegotiationOpened, next(t, stream).Type)

	app.CloseModules()
	require.Eventually(t, func() bool { return m.SSE().Connected(userID) == 0 }, time.Second, time.Millisecond)
}
