package domain

import (
	"errors"
	"slices"
	"testing"
	"time"

	"paylesscars/platform/apperr"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestNegotiation(t *testing.T, amount string) Negotiation {
	t.Helper()

	vehicle := VehicleRef{
		ID:          uuid.New(),
		Title:       "2019 Mazda CX-5",
		AskingPrice: MustMoney("22500", "USD"),
		DealerID:    uuid.New(),
	}
	n, err := Open(uuid.New(), vehicle, PartyRef{ID: uuid.New()}, MustMoney(amount, "USD"), nil, 72*time.Hour, testNow)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return n
}

func TestOpenStartsWithBuyerOffer(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	if n.Status != StatusActive || !n.IsActive() {
		t.Fatalf("expected active, got %s", n.Status)
	}
	current, ok := n.CurrentOffer()
	if !ok || current.OfferedBy != PartyBuyer || !current.Amount.Equal(MustMoney("20000", "")) {
		t.Fatalf("unexpected current offer %#v", current)
	}
	if n.Dealer.ID != n.Vehicle.DealerID {
		t.Fatal("dealer must come from the vehicle")
	}
	if !n.ExpiresAt.Equal(testNow.Add(72 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", n.ExpiresAt)
	}
}

func TestOpenRejectsDealerBuyingOwnVehicle(t *testing.T) {
	dealer := uuid.New()
	vehicle := VehicleRef{ID: uuid.New(), DealerID: dealer}

	_, err := Open(uuid.New(), vehicle, PartyRef{ID: dealer}, MustMoney("1", ""), nil, time.Hour, testNow)
	if !errors.Is(err, ErrSelfNegotiation) {
		t.Fatalf("expected self negotiation error, got %v", err)
	}
}

func TestCounterSequencing(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	next, err := Counter(n, PartyDealer, MustMoney("21000", "USD"), nil, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("counter: %v", err)
	}

	if len(next.Offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(next.Offers))
	}
	current, _ := next.CurrentOffer()
	if current.OfferedBy != PartyDealer || !current.Amount.Amount.Equal(MustMoney("21000", "").Amount) {
		t.Fatalf("unexpected current offer %#v", current)
	}
	if next.Status != StatusActive {
		t.Fatalf("status changed to %s", next.Status)
	}
	if len(n.Offers) != 1 {
		t.Fatal("counter must not mutate the input negotiation")
	}
	if current != next.Offers[len(next.Offers)-1] {
		t.Fatal("current offer must be the last offer")
	}
}

func TestCounterAllowsSamePartyTwice(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	next, err := Counter(n, PartyBuyer, MustMoney("20500", ""), nil, testNow)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if len(next.Offers) != 2 || !next.Offers[1].CreatedAt.After(next.Offers[0].CreatedAt) {
		t.Fatalf("offers must stay strictly ordered: %#v", next.Offers)
	}
	if next.Offers[1].ID <= next.Offers[0].ID {
		t.Fatal("offer ids must sort by creation time")
	}
}

func TestCounterValidation(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	cases := []struct {
		name   string
		amount Money
		at     time.Time
		want   error
		kind   apperr.Kind
	}{
		{"zero amount", MustMoney("0", ""), testNow, ErrInvalidAmount, apperr.KindValidation},
		{"negative amount", MustMoney("-1", ""), testNow, ErrInvalidAmount, apperr.KindValidation},
		{"other currency", MustMoney("21000", "EUR"), testNow, ErrCurrencyMismatch, apperr.KindValidation},
		{"after expiry", MustMoney("21000", ""), n.ExpiresAt, ErrNegotiationExpired, apperr.KindGone},
	}
	for _, tc := range cases {
		_, err := Counter(n, PartyDealer, tc.amount, nil, tc.at)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if apperr.GetKind(err) != tc.kind {
			t.Errorf("%s: expected kind %s, got %s", tc.name, tc.kind, apperr.GetKind(err))
		}
	}
}

func TestAcceptOwnOfferFails(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	next, err := Accept(n, PartyBuyer, testNow)
	if !errors.Is(err, ErrCannotAcceptOwnOffer) {
		t.Fatalf("expected own offer error, got %v", err)
	}
	if next.Status != StatusActive || next.AcceptedPrice != nil {
		t.Fatal("failed accept must not change state")
	}
}

func TestAcceptSetsAcceptedPrice(t *testing.T) {
	n := openTestNegotiation(t, "20000")
	n, _ = Counter(n, PartyDealer, MustMoney("21000", ""), nil, testNow)

	accepted, err := Accept(n, PartyBuyer, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted || accepted.IsActive() {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.AcceptedPrice == nil || !accepted.AcceptedPrice.Equal(MustMoney("21000", "")) {
		t.Fatalf("unexpected accepted price %v", accepted.AcceptedPrice)
	}

	completed, err := Complete(accepted, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted || !completed.AcceptedPrice.Equal(*accepted.AcceptedPrice) {
		t.Fatal("completion must keep the accepted price")
	}
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	base := openTestNegotiation(t, "20000")
	base, _ = Counter(base, PartyDealer, MustMoney("21000", ""), nil, testNow)

	for _, status := range Statuses() {
		if !status.IsTerminal() {
			continue
		}
		n := base
		n.Status = status

		attempts := map[string]error{}
		_, attempts["counter"] = Counter(n, PartyBuyer, MustMoney("1", ""), nil, testNow)
		_, attempts["accept"] = Accept(n, PartyBuyer, testNow)
		_, attempts["reject"] = Reject(n, PartyBuyer, nil, testNow)
		_, attempts["cancel"] = Cancel(n, PartyBuyer, testNow)
		_, attempts["expire"] = Expire(n, n.ExpiresAt.Add(time.Hour))

		for name, err := range attempts {
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Errorf("%s from %s: expected invalid transition, got %v", name, status, err)
			}
			if apperr.GetKind(err) != apperr.KindConflict {
				t.Errorf("%s from %s: expected conflict kind", name, status)
			}
		}
		if got := AvailableActions(n, PartyBuyer, testNow); len(got) != 0 {
			t.Errorf("%s: expected no actions, got %v", status, got)
		}
	}
}

func TestCancelIsBuyerOnly(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	_, err := Cancel(n, PartyDealer, testNow)
	if !errors.Is(err, ErrNotAuthorizedForAction) || apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	cancelled, err := Cancel(n, PartyBuyer, testNow)
	if err != nil || cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %v %v", cancelled.Status, err)
	}
}

func TestRejectKeepsReason(t *testing.T) {
	n := openTestNegotiation(t, "20000")
	reason := "too low"

	rejected, err := Reject(n, PartyDealer, &reason, testNow)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	reason = "mutated"
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "too low" {
		t.Fatalf("unexpected reason %v", rejected.RejectionReason)
	}
	if rejected.AcceptedPrice != nil {
		t.Fatal("rejected negotiation must not carry a price")
	}
}

func TestExpire(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	if _, err := Expire(n, n.ExpiresAt.Add(-time.Second)); !errors.Is(err, ErrNotYetExpired) {
		t.Fatalf("expected not yet expired, got %v", err)
	}

	expired, err := Expire(n, n.ExpiresAt)
	if err != nil || expired.Status != StatusExpired {
		t.Fatalf("expected expired, got %v %v", expired.Status, err)
	}
}

func TestNeedsRefreshAndActions(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	if n.NeedsRefresh(testNow) {
		t.Fatal("fresh negotiation flagged stale")
	}
	if !n.NeedsRefresh(n.ExpiresAt) {
		t.Fatal("negotiation at expiry must need refresh")
	}
	if got := AvailableActions(n, PartyDealer, n.ExpiresAt.Add(time.Minute)); len(got) != 0 {
		t.Fatalf("stale negotiation must not be actionable, got %v", got)
	}

	dealer := AvailableActions(n, PartyDealer, testNow)
	if !slices.Equal(dealer, []Action{ActionCounter, ActionAccept, ActionReject}) {
		t.Fatalf("unexpected dealer actions %v", dealer)
	}
	buyer := AvailableActions(n, PartyBuyer, testNow)
	if !slices.Equal(buyer, []Action{ActionCounter, ActionReject, ActionCancel}) {
		t.Fatalf("unexpected buyer actions %v", buyer)
	}
	if !n.IsMyTurn(PartyDealer) || n.IsMyTurn(PartyBuyer) {
		t.Fatal("dealer should be up after the opening offer")
	}
}

func TestPartyOf(t *testing.T) {
	n := openTestNegotiation(t, "20000")

	if p, err := n.PartyOf(n.Buyer.ID); err != nil || p != PartyBuyer {
		t.Fatalf("expected buyer, got %v %v", p, err)
	}
	if p, err := n.PartyOf(n.Dealer.ID); err != nil || p != PartyDealer {
		t.Fatalf("expected dealer, got %v %v", p, err)
	}
	for _, stranger := range []uuid.UUID{uuid.New(), uuid.Nil} {
		_, err := n.PartyOf(stranger)
		if !errors.Is(err, ErrNotParticipant) || apperr.GetKind(err) != apperr.KindForbidden {
			t.Fatalf("expected forbidden for %s, got %v", stranger, err)
		}
	}
}
