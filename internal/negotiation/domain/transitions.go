package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Action is a UI affordance a party may be offered.
type Action string

const (
	ActionCounter Action = "counter"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Open builds a new active negotiation from the buyer's opening offer.
func Open(id uuid.UUID, vehicle VehicleRef, buyer PartyRef, amount Money, message *string, ttl time.Duration, now time.Time) (Negotiation, error) {
	const op = "Open"

	if buyer.ID == vehicle.DealerID {
		return Negotiation{}, Fail(op, ErrSelfNegotiation)
	}
	if !amount.IsPositive() {
		return Negotiation{}, Fail(op, ErrInvalidAmount)
	}

	now = normalize(now)
	return Negotiation{
		ID:      id,
		Vehicle: vehicle,
		Buyer:   buyer,
		Dealer:  PartyRef{ID: vehicle.DealerID, DisplayName: vehicle.DealerName},
		Status:  StatusActive,
		Offers: []Offer{{
			ID:        NewOfferID(now),
			Amount:    amount,
			OfferedBy: PartyBuyer,
			Message:   message,
			CreatedAt: now,
		}},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Counter appends a new current offer by party. Either party may counter at
// any time while the negotiation is active.
func Counter(n Negotiation, party Party, amount Money, message *string, now time.Time) (Negotiation, error) {
	const op = "Counter"

	if err := checkActorTransition(op, n, StatusActive, now); err != nil {
		return n, err
	}
	if !amount.IsPositive() {
		return n, Fail(op, ErrInvalidAmount)
	}
	if amount.Currency != n.Currency() {
		return n, Fail(op, ErrCurrencyMismatch)
	}

	createdAt := normalize(now)
	if current, ok := n.CurrentOffer(); ok && !createdAt.After(current.CreatedAt) {
		createdAt = current.CreatedAt.Add(time.Microsecond)
	}

	next := n.Clone()
	next.Offers = append(next.Offers, Offer{
		ID:        NewOfferID(createdAt),
		Amount:    amount,
		OfferedBy: party,
		Message:   message,
		CreatedAt: createdAt,
	})
	next.UpdatedAt = createdAt
	return next, nil
}

// Accept closes the negotiation at the current offer's amount. A party may
// not accept its own outstanding offer.
func Accept(n Negotiation, party Party, now time.Time) (Negotiation, error) {
	const op = "Accept"

	if err := checkActorTransition(op, n, StatusAccepted, now); err != nil {
		return n, err
	}
	current, ok := n.CurrentOffer()
	if !ok {
		return n, Fail(op, ErrNoCurrentOffer)
	}
	if current.OfferedBy == party {
		return n, Fail(op, ErrCannotAcceptOwnOffer)
	}

	next := n.Clone()
	price := current.Amount
	next.Status = StatusAccepted
	next.AcceptedPrice = &price
	next.UpdatedAt = normalize(now)
	return next, nil
}

// Reject ends the negotiation without a price. Either party may reject.
func Reject(n Negotiation, party Party, reason *string, now time.Time) (Negotiation, error) {
	const op = "Reject"

	if err := checkActorTransition(op, n, StatusRejected, now); err != nil {
		return n, err
	}

	next := n.Clone()
	next.Status = StatusRejected
	if reason != nil {
		r := *reason
		next.RejectionReason = &r
	}
	next.UpdatedAt = normalize(now)
	return next, nil
}

// Cancel withdraws the whole negotiation. Only the buyer may cancel.
func Cancel(n Negotiation, party Party, now time.Time) (Negotiation, error) {
	const op = "Cancel"

	if err := checkActorTransition(op, n, StatusCancelled, now); err != nil {
		return n, err
	}
	if party != PartyBuyer {
		return n, Fail(op, ErrNotAuthorizedForAction)
	}

	next := n.Clone()
	next.Status = StatusCancelled
	next.UpdatedAt = normalize(now)
	return next, nil
}

// Expire is the time-driven transition; it fails before expires_at.
func Expire(n Negotiation, now time.Time) (Negotiation, error) {
	const op = "Expire"

	if !n.Status.CanTransitionTo(StatusExpired) {
		return n, Fail(op, ErrInvalidStateTransition)
	}
	if now.Before(n.ExpiresAt) {
		return n, Fail(op, ErrNotYetExpired)
	}

	next := n.Clone()
	next.Status = StatusExpired
	next.UpdatedAt = normalize(now)
	return next, nil
}

// Complete records downstream fulfilment of an accepted deal.
func Complete(n Negotiation, now time.Time) (Negotiation, error) {
	if !n.Status.CanTransitionTo(StatusCompleted) {
		return n, Fail("Complete", ErrInvalidStateTransition)
	}

	next := n.Clone()
	next.Status = StatusCompleted
	next.UpdatedAt = normalize(now)
	return next, nil
}

// AvailableActions is advisory: the server remains the final arbiter.
// A stale read offers nothing until it has been refreshed.
func AvailableActions(n Negotiation, party Party, now time.Time) []Action {
	if !n.IsActive() || n.NeedsRefresh(now) {
		return nil
	}

	actions := []Action{ActionCounter}
	if current, ok := n.CurrentOffer(); ok && current.OfferedBy != party {
		actions = append(actions, ActionAccept)
	}
	actions = append(actions, ActionReject)
	if party == PartyBuyer {
		actions = append(actions, ActionCancel)
	}
	return actions
}

// HasAction reports whether action is currently available to party.
func HasAction(n Negotiation, party Party, action Action, now time.Time) bool {
	return slices.Contains(AvailableActions(n, party, now), action)
}

func checkActorTransition(op string, n Negotiation, to Status, now time.Time) error {
	if !n.Status.CanTransitionTo(to) {
		return Fail(op, ErrInvalidStateTransition)
	}
	if !now.Before(n.ExpiresAt) {
		return Fail(op, ErrNegotiationExpired)
	}
	return nil
}

// normalize drops precision postgres cannot store so round trips compare equal.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
