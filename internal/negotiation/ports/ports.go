// Package ports defines the interfaces the negotiation store and service
// depend on. Implementations live in client, snapshot and repository.
package ports

import (
	"context"
	"time"

	"paylesscars/internal/negotiation/domain"

	"github.com/google/uuid"
)

// Page is a single page of a listing.
type Page struct {
	Items    []domain.Negotiation
	Page     int
	PageSize int
	Total    int
}

// HasMore reports whether a later page exists.
func (p Page) HasMore() bool {
	return p.Page*p.PageSize < p.Total
}

// ListQuery selects a page of negotiations visible to the caller.
type ListQuery struct {
	Filter   domain.ListFilter
	Page     int
	PageSize int
}

// CreateInput opens a negotiation with the buyer's first offer.
type CreateInput struct {
	VehicleID uuid.UUID
	Amount    domain.Money
	Message   *string
}

// OfferInput is a counter-offer.
type OfferInput struct {
	Amount  domain.Money
	Message *string
}

// NegotiationAPI is the remote server of record as seen by the client store.
// Every mutating call returns the full authoritative aggregate.
type NegotiationAPI interface {
	List(ctx context.Context, query ListQuery) (Page, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error)
	Create(ctx context.Context, input CreateInput) (domain.Negotiation, error)
	SubmitOffer(ctx context.Context, id uuid.UUID, input OfferInput) (domain.Negotiation, error)
	Accept(ctx context.Context, id uuid.UUID) (domain.Negotiation, error)
	Reject(ctx context.Context, id uuid.UUID, reason *string) (domain.Negotiation, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Negotiation, error)
}

// SnapshotStore persists the store's last committed list between runs.
type SnapshotStore interface {
	Load(ctx context.Context, userID uuid.UUID) ([]domain.Negotiation, error)
	Save(ctx context.Context, userID uuid.UUID, negotiations []domain.Negotiation) error
}

// Repository is the persistence boundary of the reference service.
type Repository interface {
	GetVehicle(ctx context.Context, id uuid.UUID) (domain.VehicleRef, error)
	UpsertVehicle(ctx context.Context, vehicle domain.VehicleRef) error

	Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error)
	List(ctx context.Context, userID uuid.UUID, query ListQuery) (Page, error)
	Insert(ctx context.Context, n domain.Negotiation) error
	// Update persists n if the stored version still equals expectedVersion and
	// returns the stored aggregate with its new version. A mismatch fails with
	// domain.ErrConcurrentUpdate.
	Update(ctx context.Context, n domain.Negotiation, expectedVersion int64) (domain.Negotiation, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// ExpiryScheduler enqueues the time-driven expiry of a negotiation.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, negotiationID uuid.UUID, at time.Time) error
}
