// Package events defines the negotiation domain events and re-exports the
// platform bus so modules import a single package.
package events

import (
	"time"

	"paylesscars/platform/events"
	"paylesscars/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Subscriber  = events.Subscriber
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// NewInMemoryBus creates the in-process bus used by every binary.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// Event names, usable with Bus.Subscribe.
const (
	NameNegotiationCreated      = "negotiations.created"
	NameOfferSubmitted          = "negotiations.offer.submitted"
	NameNegotiationStatus       = "negotiations.status.changed"
	NameNegotiationCacheChanged = "negotiations.cache.changed"
)

// =============================================================================
// Negotiation Domain Events (server of record)
// =============================================================================

// NegotiationCreated is published when a buyer opens a negotiation.
type NegotiationCreated struct {
	BaseEvent
	NegotiationID uuid.UUID       `json:"negotiationId"`
	VehicleID     uuid.UUID       `json:"vehicleId"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	DealerID      uuid.UUID       `json:"dealerId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

func (e NegotiationCreated) EventName() string { return NameNegotiationCreated }

// OfferSubmitted is published when either party counters.
type OfferSubmitted struct {
	BaseEvent
	NegotiationID uuid.UUID       `json:"negotiationId"`
	BuyerID       uuid.UUID       `json:"buyerId"`
	DealerID      uuid.UUID       `json:"dealerId"`
	OfferID       string          `json:"offerId"`
	OfferedBy     string          `json:"offeredBy"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

func (e OfferSubmitted) EventName() string { return NameOfferSubmitted }

// NegotiationStatusChanged is published for every terminal transition
// (accepted, rejected, cancelled, expired, completed).
type NegotiationStatusChanged struct {
	BaseEvent
	NegotiationID uuid.UUID        `json:"negotiationId"`
	BuyerID       uuid.UUID        `json:"buyerId"`
	DealerID      uuid.UUID        `json:"dealerId"`
	From          string           `json:"from"`
	To            string           `json:"to"`
	ActorID       *uuid.UUID       `json:"actorId,omitempty"`
	AcceptedPrice *decimal.Decimal `json:"acceptedPrice,omitempty"`
	Reason        *string          `json:"reason,omitempty"`
}

func (e NegotiationStatusChanged) EventName() string { return NameNegotiationStatus }

// =============================================================================
// Client Store Events
// =============================================================================

// CacheChange describes what happened to the client cache.
type CacheChange string

const (
	CacheRefreshed  CacheChange = "refreshed"
	CacheUpserted   CacheChange = "upserted"
	CacheOptimistic CacheChange = "optimistic"
	CacheCommitted  CacheChange = "committed"
	CacheRolledBack CacheChange = "rolled_back"
)

// NegotiationCacheChanged is published by the client store whenever readers
// would observe a different cache.
type NegotiationCacheChanged struct {
	BaseEvent
	Change        CacheChange `json:"change"`
	NegotiationID *uuid.UUID  `json:"negotiationId,omitempty"`
	Status        string      `json:"status,omitempty"`
}

func (e NegotiationCacheChanged) EventName() string { return NameNegotiationCacheChanged }
