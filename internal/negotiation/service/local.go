package service

import (
	"context"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"

	"github.com/google/uuid"
)

// Local is an in-process ports.NegotiationAPI bound to one user. It lets the
// client store run against the service without HTTP.
type Local struct {
	svc  *Service
	user domain.PartyRef
}

var _ ports.NegotiationAPI = (*Local)(nil)

// As returns the service seen through user's session.
func (s *Service) As(user domain.PartyRef) *Local {
	return &Local{svc: s, user: user}
}

func (l *Local) List(ctx context.Context, query ports.ListQuery) (ports.Page, error) {
	return l.svc.List(ctx, l.user.ID, query)
}

func (l *Local) Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return l.svc.Get(ctx, l.user.ID, id)
}

func (l *Local) Create(ctx context.Context, input ports.CreateInput) (domain.Negotiation, error) {
	return l.svc.Create(ctx, l.user, input)
}

func (l *Local) SubmitOffer(ctx context.Context, id uuid.UUID, input ports.OfferInput) (domain.Negotiation, error) {
	return l.svc.SubmitOffer(ctx, l.user.ID, id, input)
}

func (l *Local) Accept(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return l.svc.Accept(ctx, l.user.ID, id)
}

func (l *Local) Reject(ctx context.Context, id uuid.UUID, reason *string) (domain.Negotiation, error) {
	return l.svc.Reject(ctx, l.user.ID, id, reason)
}

func (l *Local) Cancel(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return l.svc.Cancel(ctx, l.user.ID, id)
}
