// Package domain holds the negotiation aggregate and its state machine.
// Everything here is pure: functions take a Negotiation value and return the
// next value, never touching the caller's copy.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/currency"
)

// Offer is one priced proposal. Offers are never mutated after creation.
type Offer struct {
	ID        string
	Amount    Money
	OfferedBy Party
	Message   *string
	CreatedAt time.Time
}

// VehicleRef is display data owned by the vehicle catalog.
type VehicleRef struct {
	ID              uuid.UUID
	Title           string
	AskingPrice     Money
	PrimaryImageURL string
	DealerID        uuid.UUID
	DealerName      string
}

type Negotiation struct {
	ID              uuid.UUID
	Vehicle         VehicleRef
	Buyer           PartyRef
	Dealer          PartyRef
	Status          Status
	Offers          []Offer
	AcceptedPrice   *Money
	RejectionReason *string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// NewOfferID returns a ULID timestamped at t, so offer ids sort by creation.
func NewOfferID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// CurrentOffer is the last offer, absent only when there are no offers.
func (n Negotiation) CurrentOffer() (Offer, bool) {
	if len(n.Offers) == 0 {
		return Offer{}, false
	}
	return n.Offers[len(n.Offers)-1], true
}

func (n Negotiation) IsActive() bool {
	return n.Status == StatusActive
}

// Currency is the currency of the opening offer; counters must match it.
func (n Negotiation) Currency() currency.Unit {
	if len(n.Offers) == 0 {
		return n.Vehicle.AskingPrice.Currency
	}
	return n.Offers[0].Amount.Currency
}

// PartyOf resolves which side userID is on.
func (n Negotiation) PartyOf(userID uuid.UUID) (Party, error) {
	switch userID {
	case uuid.Nil:
	case n.Buyer.ID:
		return PartyBuyer, nil
	case n.Dealer.ID:
		return PartyDealer, nil
	}
	return "", Fail("PartyOf", ErrNotParticipant)
}

// IsMyTurn reports whether party is expected to respond to the current offer.
func (n Negotiation) IsMyTurn(party Party) bool {
	current, ok := n.CurrentOffer()
	return n.IsActive() && ok && current.OfferedBy != party
}

// NeedsRefresh flags a cached active negotiation whose expiry has passed.
// Its status can no longer be trusted until re-fetched.
func (n Negotiation) NeedsRefresh(now time.Time) bool {
	return n.IsActive() && !now.Before(n.ExpiresAt)
}

// Clone returns a copy that shares no mutable memory with n.
func (n Negotiation) Clone() Negotiation {
	out := n
	out.Offers = slices.Clone(n.Offers)
	if n.AcceptedPrice != nil {
		price := *n.AcceptedPrice
		out.AcceptedPrice = &price
	}
	if n.RejectionReason != nil {
		reason := *n.RejectionReason
		out.RejectionReason = &reason
	}
	return out
}

// ListFilter narrows a party-scoped listing. Nil fields do not filter.
type ListFilter struct {
	Status *Status
	Party  *Party
}

// Matches reports whether n passes the filter for userID.
func (f ListFilter) Matches(n Negotiation, userID uuid.UUID) bool {
	party, err := n.PartyOf(userID)
	if err != nil {
		return false
	}
	if f.Party != nil && *f.Party != party {
		return false
	}
	if f.Status != nil && *f.Status != n.Status {
		return false
	}
	return true
}
