package domain

import (
	"errors"

	"paylesscars/platform/apperr"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCannotAcceptOwnOffer   = errors.New("cannot accept own offer")
	ErrNotParticipant         = errors.New("not a participant in this negotiation")
	ErrNotAuthorizedForAction = errors.New("party is not allowed to perform this action")
	ErrNegotiationExpired     = errors.New("negotiation has expired")
	ErrNotYetExpired          = errors.New("negotiation has not reached its expiry")
	ErrNoCurrentOffer         = errors.New("negotiation has no current offer")
	ErrInvalidAmount          = errors.New("offer amount must be positive")
	ErrCurrencyMismatch       = errors.New("offer currency does not match negotiation currency")
	ErrSelfNegotiation        = errors.New("buyer and dealer must be different users")
	ErrNegotiationNotFound    = errors.New("negotiation not found")
	ErrVehicleNotFound        = errors.New("vehicle not found")
	ErrConcurrentUpdate       = errors.New("negotiation was changed by another request")
)

// ErrorDetail is attached to domain errors as apperr details so the sentinel
// survives a trip over the wire.
type ErrorDetail struct {
	Code string `json:"code"`
}

type sentinelInfo struct {
	code string
	kind apperr.Kind
}

var sentinels = map[error]sentinelInfo{
	ErrInvalidStateTransition: {"invalid_state_transition", apperr.KindConflict},
	ErrCannotAcceptOwnOffer:   {"cannot_accept_own_offer", apperr.KindValidation},
	ErrNotParticipant:         {"not_participant", apperr.KindForbidden},
	ErrNotAuthorizedForAction: {"not_authorized_for_action", apperr.KindForbidden},
	ErrNegotiationExpired:     {"negotiation_expired", apperr.KindGone},
	ErrNotYetExpired:          {"not_yet_expired", apperr.KindConflict},
	ErrNoCurrentOffer:         {"no_current_offer", apperr.KindConflict},
	ErrInvalidAmount:          {"invalid_amount", apperr.KindValidation},
	ErrCurrencyMismatch:       {"currency_mismatch", apperr.KindValidation},
	ErrSelfNegotiation:        {"self_negotiation", apperr.KindValidation},
	ErrNegotiationNotFound:    {"negotiation_not_found", apperr.KindNotFound},
	ErrVehicleNotFound:        {"vehicle_not_found", apperr.KindNotFound},
	ErrConcurrentUpdate:       {"concurrent_update", apperr.KindConflict},
}

// Fail wraps a sentinel in an apperr.Error of the sentinel's kind.
func Fail(op string, sentinel error) *apperr.Error {
	info, ok := sentinels[sentinel]
	if !ok {
		return apperr.Wrap(apperr.KindInternal, sentinel.Error(), sentinel).WithOp(op)
	}
	return apperr.Wrap(info.kind, sentinel.Error(), sentinel).
		WithOp(op).
		WithDetails(ErrorDetail{Code: info.code})
}

// SentinelForCode returns the sentinel registered under code, or nil.
func SentinelForCode(code string) error {
	if code == "" {
		return nil
	}
	for sentinel, info := range sentinels {
		if info.code == code {
			return sentinel
		}
	}
	return nil
}
