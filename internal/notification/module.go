// Package notification reacts to negotiation events: it logs each one and
// pushes it to the participants' open event streams.
package notification

import (
	"context"
	"fmt"

	"paylesscars/internal/events"
	apphttp "paylesscars/internal/http"
	"paylesscars/internal/notification/sse"
	"paylesscars/platform/logger"
)

// Module is the notification bounded context module.
type Module struct {
	sse *sse.Service
	log *logger.Logger
}

// New creates the notification module.
func New(log *logger.Logger) *Module {
	if log == nil {
		log = logger.Discard()
	}
	return &Module{sse: sse.New(log), log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notifications"
}

// SSE exposes the stream hub.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// RegisterRoutes mounts the participant event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.sse.Handler())
}

// RegisterHandlers subscribes to negotiation events on the bus.
func (m *Module) RegisterHandlers(bus events.Subscriber) {
	bus.Subscribe(events.NameNegotiationCreated, m)
	bus.Subscribe(events.NameOfferSubmitted, m)
	bus.Subscribe(events.NameNegotiationStatus, m)
}

// Close ends every open stream.
func (m *Module) Close() {
	m.sse.Close()
}

// Handle routes events to the appropriate handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.NegotiationCreated:
		return m.handleNegotiationCreated(ctx, e)
	case events.OfferSubmitted:
		return m.handleOfferSubmitted(ctx, e)
	case events.NegotiationStatusChanged:
		return m.handleStatusChanged(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleNegotiationCreated(ctx context.Context, e events.NegotiationCreated) error {
	m.log.WithContext(ctx).Info("negotiation opened",
		"negotiationId", e.NegotiationID,
		"vehicleId", e.VehicleID,
		"dealerId", e.DealerID,
		"amount", e.Amount.String(),
		"currency", e.Currency,
	)

	m.sse.PublishToParticipants(e.BuyerID, e.DealerID, sse.Event{
		Type:          sse.EventNegotiationOpened,
		NegotiationID: e.NegotiationID,
		Message:       fmt.Sprintf("New offer of %s %s", e.Amount.StringFixed(2), e.Currency),
		Data:          e,
	})
	return nil
}

func (m *Module) handleOfferSubmitted(ctx context.Context, e events.OfferSubmitted) error {
	m.log.WithContext(ctx).Info("counter-offer submitted",
		"negotiationId", e.NegotiationID,
		"offeredBy", e.OfferedBy,
		"amount", e.Amount.String(),
		"currency", e.Currency,
	)

	m.sse.PublishToParticipants(e.BuyerID, e.DealerID, sse.Event{
		Type:          sse.EventOfferSubmitted,
		NegotiationID: e.NegotiationID,
		Message:       fmt.Sprintf("The %s offered %s %s", e.OfferedBy, e.Amount.StringFixed(2), e.Currency),
		Data:          e,
	})
	return nil
}

func (m *Module) handleStatusChanged(ctx context.Context, e events.NegotiationStatusChanged) error {
	m.log.WithContext(ctx).Info("negotiation status changed",
		"negotiationId", e.NegotiationID,
		"from", e.From,
		"to", e.To,
	)

	m.sse.PublishToParticipants(e.BuyerID, e.DealerID, sse.Event{
		Type:          sse.EventNegotiationStatus,
		NegotiationID: e.NegotiationID,
		Message:       "Negotiation " + e.To,
		Data:          e,
	})
	return nil
}

var (
	_ apphttp.EventModule = (*Module)(nil)
	_ apphttp.Closer      = (*Module)(nil)
)
