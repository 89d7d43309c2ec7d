// Package service is the server of record for negotiations. It owns every
// transition, persists it under optimistic locking and announces it on the
// event bus.
package service

import (
	"context"
	"errors"
	"time"

	"paylesscars/internal/events"
	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/platform/apperr"
	"paylesscars/platform/logger"
	"paylesscars/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	sweepBatchSize  = 200
)

// Service provides the negotiation business operations.
type Service struct {
	repo      ports.Repository
	eventBus  events.Publisher
	scheduler ports.ExpiryScheduler
	ttl       time.Duration
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithScheduler enqueues an expiry task for every new negotiation.
func WithScheduler(s ports.ExpiryScheduler) Option {
	return func(svc *Service) { svc.scheduler = s }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New creates a negotiation service. ttl is the lifetime of a new negotiation.
func New(repo ports.Repository, eventBus events.Publisher, ttl time.Duration, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Discard()
	}
	s := &Service{repo: repo, eventBus: eventBus, ttl: ttl, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a negotiation for buyer on a catalog vehicle. The dealer is
// the vehicle's owner.
func (s *Service) Create(ctx context.Context, buyer domain.PartyRef, input ports.CreateInput) (domain.Negotiation, error) {
	vehicle, err := s.repo.GetVehicle(ctx, input.VehicleID)
	if err != nil {
		return domain.Negotiation{}, err
	}
	input.Amount = input.Amount.OrCurrency(vehicle.AskingPrice.Currency)
	if input.Amount.Currency != vehicle.AskingPrice.Currency {
		return domain.Negotiation{}, domain.Fail("Create", domain.ErrCurrencyMismatch)
	}

	buyer.DisplayName = sanitize.Text(buyer.DisplayName)
	n, err := domain.Open(uuid.New(), vehicle, buyer, input.Amount, sanitize.TextPtr(input.Message), s.ttl, s.now())
	if err != nil {
		return domain.Negotiation{}, err
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		return domain.Negotiation{}, err
	}
	n.Version = 1

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleExpiry(ctx, n.ID, n.ExpiresAt); err != nil {
			// The periodic sweep still expires it.
			s.log.Warn("failed to schedule negotiation expiry", "negotiationId", n.ID, "error", err)
		}
	}

	current, _ := n.CurrentOffer()
	s.eventBus.Publish(ctx, events.NegotiationCreated{
		BaseEvent:     events.NewBaseEventAt(n.CreatedAt),
		NegotiationID: n.ID,
		VehicleID:     vehicle.ID,
		BuyerID:       n.Buyer.ID,
		DealerID:      n.Dealer.ID,
		Amount:        current.Amount.Amount,
		Currency:      current.Amount.Currency.String(),
		ExpiresAt:     n.ExpiresAt,
	})
	s.log.NegotiationTransition(n.ID.String(), "", n.Status.String(), n.Buyer.ID.String())

	return n, nil
}

// Get returns a negotiation visible to userID. An active negotiation past
// its expiry is expired on read so callers never see a stale status.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (domain.Negotiation, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if _, err := n.PartyOf(userID); err != nil {
		return domain.Negotiation{}, err
	}
	return s.expireIfDue(ctx, n)
}

// List returns a page of the negotiations userID takes part in.
func (s *Service) List(ctx context.Context, userID uuid.UUID, query ports.ListQuery) (ports.Page, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize < 1 {
		query.PageSize = defaultPageSize
	}
	query.PageSize = min(query.PageSize, maxPageSize)

	// Expiring while filtering by status would move items out of the page
	// after Total was counted.
	if query.Filter.Status != nil {
		if err := s.expireDueFor(ctx, userID); err != nil {
			return ports.Page{}, err
		}
	}

	page, err := s.repo.List(ctx, userID, query)
	if err != nil {
		return ports.Page{}, err
	}

	for i, n := range page.Items {
		fresh, err := s.expireIfDue(ctx, n)
		if err != nil {
			return ports.Page{}, err
		}
		page.Items[i] = fresh
	}
	return page, nil
}

// SubmitOffer appends a counter-offer by whichever party userID is.
func (s *Service) SubmitOffer(ctx context.Context, userID, id uuid.UUID, input ports.OfferInput) (domain.Negotiation, error) {
	var offer domain.Offer
	n, err := s.transition(ctx, userID, id, func(n domain.Negotiation, party domain.Party, now time.Time) (domain.Negotiation, error) {
		next, err := domain.Counter(n, party, input.Amount.OrCurrency(n.Currency()), sanitize.TextPtr(input.Message), now)
		if err == nil {
			offer, _ = next.CurrentOffer()
		}
		return next, err
	})
	if err != nil {
		return domain.Negotiation{}, err
	}

	s.eventBus.Publish(ctx, events.OfferSubmitted{
		BaseEvent:     events.NewBaseEventAt(offer.CreatedAt),
		NegotiationID: n.ID,
		BuyerID:       n.Buyer.ID,
		DealerID:      n.Dealer.ID,
		OfferID:       offer.ID,
		OfferedBy:     offer.OfferedBy.String(),
		Amount:        offer.Amount.Amount,
		Currency:      offer.Amount.Currency.String(),
	})
	return n, nil
}

// Accept closes the deal at the current offer's amount.
func (s *Service) Accept(ctx context.Context, userID, id uuid.UUID) (domain.Negotiation, error) {
	return s.transition(ctx, userID, id, domain.Accept)
}

func (s *Service) Reject(ctx context.Context, userID, id uuid.UUID, reason *string) (domain.Negotiation, error) {
	reason = sanitize.TextPtr(reason)
	return s.transition(ctx, userID, id, func(n domain.Negotiation, party domain.Party, now time.Time) (domain.Negotiation, error) {
		return domain.Reject(n, party, reason, now)
	})
}

// Cancel withdraws the negotiation; only its buyer may do so.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (domain.Negotiation, error) {
	return s.transition(ctx, userID, id, domain.Cancel)
}

// Expire applies the time-driven transition. It is idempotent: a negotiation
// that already left the active state is returned unchanged.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	if !n.IsActive() {
		return n, nil
	}

	expired, err := domain.Expire(n, s.now())
	if err != nil {
		return domain.Negotiation{}, err
	}
	return s.save(ctx, n, expired, nil)
}

// ExpireDue expires every active negotiation past its expiry and returns how
// many were transitioned.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpirable(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, id := range ids {
		n, err := s.Expire(ctx, id)
		switch {
		case errors.Is(err, domain.ErrConcurrentUpdate):
			// Someone else moved it first.
		case err != nil:
			errs = append(errs, err)
		case n.Status == domain.StatusExpired:
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// Complete records fulfilment of an accepted deal. It is an operator action
// and carries no participant check.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Negotiation{}, err
	}

	completed, err := domain.Complete(n, s.now())
	if err != nil {
		return domain.Negotiation{}, err
	}
	return s.save(ctx, n, completed, nil)
}

// UpsertVehicle registers catalog data negotiations can be opened against.
func (s *Service) UpsertVehicle(ctx context.Context, vehicle domain.VehicleRef) error {
	if !vehicle.AskingPrice.IsPositive() {
		return domain.Fail("UpsertVehicle", domain.ErrInvalidAmount)
	}
	if vehicle.ID == uuid.Nil || vehicle.DealerID == uuid.Nil {
		return apperr.Validation("vehicle and dealer ids are required")
	}
	vehicle.Title = sanitize.Text(vehicle.Title)
	vehicle.DealerName = sanitize.Text(vehicle.DealerName)
	return s.repo.UpsertVehicle(ctx, vehicle)
}

type transitionFunc func(n domain.Negotiation, party domain.Party, now time.Time) (domain.Negotiation, error)

// transition loads id, resolves userID's side, applies fn and persists the
// result. An expired negotiation is persisted as expired before the actor's
// error is returned.
func (s *Service) transition(ctx context.Context, userID, id uuid.UUID, fn transitionFunc) (domain.Negotiation, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	party, err := n.PartyOf(userID)
	if err != nil {
		return domain.Negotiation{}, err
	}

	now := s.now()
	next, err := fn(n, party, now)
	if errors.Is(err, domain.ErrNegotiationExpired) {
		if _, expireErr := s.expireIfDue(ctx, n); expireErr != nil {
			s.log.Warn("failed to persist lazy expiry", "negotiationId", id, "error", expireErr)
		}
		return domain.Negotiation{}, err
	}
	if err != nil {
		return domain.Negotiation{}, err
	}

	return s.save(ctx, n, next, &userID)
}

// expireDueFor expires every overdue active negotiation userID takes part in.
func (s *Service) expireDueFor(ctx context.Context, userID uuid.UUID) error {
	active := domain.StatusActive
	query := ports.ListQuery{Filter: domain.ListFilter{Status: &active}, Page: 1, PageSize: maxPageSize}

	var due []domain.Negotiation
	for {
		page, err := s.repo.List(ctx, userID, query)
		if err != nil {
			return err
		}
		for _, n := range page.Items {
			if n.NeedsRefresh(s.now()) {
				due = append(due, n)
			}
		}
		if len(page.Items) == 0 || !page.HasMore() {
			break
		}
		query.Page++
	}

	for _, n := range due {
		if _, err := s.expireIfDue(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) expireIfDue(ctx context.Context, n domain.Negotiation) (domain.Negotiation, error) {
	if !n.NeedsRefresh(s.now()) {
		return n, nil
	}

	expired, err := domain.Expire(n, s.now())
	if err != nil {
		return domain.Negotiation{}, err
	}
	stored, err := s.save(ctx, n, expired, nil)
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return s.repo.Get(ctx, n.ID)
	}
	return stored, err
}

// save persists next over prev and announces any status change.
func (s *Service) save(ctx context.Context, prev, next domain.Negotiation, actorID *uuid.UUID) (domain.Negotiation, error) {
	stored, err := s.repo.Update(ctx, next, prev.Version)
	if err != nil {
		return domain.Negotiation{}, err
	}

	if prev.Status != stored.Status {
		actor := "system"
		if actorID != nil {
			actor = actorID.String()
		}
		s.log.NegotiationTransition(stored.ID.String(), prev.Status.String(), stored.Status.String(), actor)

		evt := events.NegotiationStatusChanged{
			BaseEvent:     events.NewBaseEventAt(stored.UpdatedAt),
			NegotiationID: stored.ID,
			BuyerID:       stored.Buyer.ID,
			DealerID:      stored.Dealer.ID,
			From:          prev.Status.String(),
			To:            stored.Status.String(),
			ActorID:       actorID,
			Reason:        stored.RejectionReason,
		}
		if stored.AcceptedPrice != nil {
			price := stored.AcceptedPrice.Amount
			evt.AcceptedPrice = &price
		}
		s.eventBus.Publish(ctx, evt)
	}
	return stored, nil
}
