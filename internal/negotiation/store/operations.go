package store

import (
	"context"
	"slices"

	"paylesscars/internal/events"
	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"

	"github.com/google/uuid"
)

// List fetches every page matching opts and replaces the list view. On
// failure the previous cache is left untouched.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]domain.Negotiation, error) {
	const op = "List"

	if err := s.startRemote(); err != nil {
		return nil, wrap(op, uuid.Nil, err)
	}

	items, err := s.fetchAll(ctx, opts)
	if err != nil {
		storeErr := wrap(op, uuid.Nil, err)
		s.finishRemote(storeErr)
		return nil, storeErr
	}

	slices.SortStableFunc(items, func(a, b domain.Negotiation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	s.mu.Lock()
	s.replaceListLocked(items)
	s.mu.Unlock()
	s.finishRemote(nil)

	s.publish(ctx, events.CacheRefreshed, nil)
	s.persist(ctx)
	return cloneAll(items), nil
}

func (s *Store) fetchAll(ctx context.Context, opts ListOptions) ([]domain.Negotiation, error) {
	var items []domain.Negotiation
	query := ports.ListQuery{
		Filter:   domain.ListFilter{Status: opts.Status},
		Page:     1,
		PageSize: s.pageSize,
	}

	for {
		page, err := s.api.List(ctx, query)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.Items) == 0 || !page.HasMore() {
			return items, nil
		}
		query.Page++
	}
}

// GetOne fetches and caches a single negotiation. Concurrent calls for the
// same id share one request.
func (s *Store) GetOne(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return s.fetch(ctx, "GetOne", id)
}

func (s *Store) fetch(ctx context.Context, op string, id uuid.UUID) (domain.Negotiation, error) {
	if err := s.startRemote(); err != nil {
		return domain.Negotiation{}, wrap(op, id, err)
	}

	value, err, _ := s.fetches.Do(id.String(), func() (any, error) {
		return s.api.Get(ctx, id)
	})
	if err != nil {
		storeErr := wrap(op, id, err)
		s.finishRemote(storeErr)
		return domain.Negotiation{}, storeErr
	}

	n := value.(domain.Negotiation)
	s.mu.Lock()
	s.mergeLocked(n)
	delete(s.stale, id)
	current := s.records[id].Clone()
	s.mu.Unlock()
	s.finishRemote(nil)

	s.publish(ctx, events.CacheUpserted, &current)
	return current, nil
}

// CreateNegotiation opens a negotiation with the caller's first offer. It is
// never optimistic: the id is assigned by the server. The result is
// prepended to the list view.
func (s *Store) CreateNegotiation(ctx context.Context, vehicleID uuid.UUID, amount domain.Money, message *string) (domain.Negotiation, error) {
	const op = "CreateNegotiation"

	if !amount.IsPositive() {
		storeErr := wrap(op, uuid.Nil, domain.Fail(op, domain.ErrInvalidAmount))
		s.setError(storeErr)
		return domain.Negotiation{}, storeErr
	}

	if err := s.startRemote(); err != nil {
		return domain.Negotiation{}, wrap(op, uuid.Nil, err)
	}

	n, err := s.api.Create(ctx, ports.CreateInput{VehicleID: vehicleID, Amount: amount, Message: message})
	if err != nil {
		storeErr := wrap(op, uuid.Nil, err)
		s.finishRemote(storeErr)
		return domain.Negotiation{}, storeErr
	}

	s.mu.Lock()
	s.prependLocked(n)
	s.mu.Unlock()
	s.finishRemote(nil)

	s.publish(ctx, events.CacheUpserted, &n)
	s.persist(ctx)
	return n.Clone(), nil
}

// SubmitOffer sends a counter-offer and replaces the cached record with the
// server's answer. It is not optimistic: the new current offer's id and
// timestamp are server-assigned.
func (s *Store) SubmitOffer(ctx context.Context, id uuid.UUID, amount domain.Money, message *string) (domain.Negotiation, error) {
	const op = "SubmitOffer"

	release, err := s.acquire(op, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	defer release()

	n, party, err := s.prepare(ctx, op, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	amount = amount.OrCurrency(n.Currency())
	if _, err := domain.Counter(n, party, amount, message, s.now()); err != nil {
		storeErr := wrap(op, id, err)
		s.setError(storeErr)
		return domain.Negotiation{}, storeErr
	}

	if err := s.startRemote(); err != nil {
		return domain.Negotiation{}, wrap(op, id, err)
	}

	result, err := s.api.SubmitOffer(ctx, id, ports.OfferInput{Amount: amount, Message: message})
	if err != nil {
		storeErr := wrap(op, id, err)
		if storeErr.Class == ConflictError {
			s.mu.Lock()
			s.markStaleLocked(id)
			s.mu.Unlock()
		}
		s.finishRemote(storeErr)
		return domain.Negotiation{}, storeErr
	}

	s.mu.Lock()
	s.mergeLocked(result)
	s.mu.Unlock()
	s.finishRemote(nil)

	s.publish(ctx, events.CacheUpserted, &result)
	s.persist(ctx)
	return result.Clone(), nil
}

// AcceptOffer optimistically accepts the other party's current offer.
func (s *Store) AcceptOffer(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return s.optimistic(ctx, "AcceptOffer", id,
		func(n domain.Negotiation, party domain.Party) (domain.Negotiation, error) {
			return domain.Accept(n, party, s.now())
		},
		func(ctx context.Context) (domain.Negotiation, error) {
			return s.api.Accept(ctx, id)
		},
	)
}

// RejectNegotiation optimistically rejects the negotiation.
func (s *Store) RejectNegotiation(ctx context.Context, id uuid.UUID, reason *string) (domain.Negotiation, error) {
	return s.optimistic(ctx, "RejectNegotiation", id,
		func(n domain.Negotiation, party domain.Party) (domain.Negotiation, error) {
			return domain.Reject(n, party, reason, s.now())
		},
		func(ctx context.Context) (domain.Negotiation, error) {
			return s.api.Reject(ctx, id, reason)
		},
	)
}

// CancelNegotiation optimistically withdraws the negotiation (buyer only).
func (s *Store) CancelNegotiation(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return s.optimistic(ctx, "CancelNegotiation", id,
		func(n domain.Negotiation, party domain.Party) (domain.Negotiation, error) {
			return domain.Cancel(n, party, s.now())
		},
		func(ctx context.Context) (domain.Negotiation, error) {
			return s.api.Cancel(ctx, id)
		},
	)
}

type applyFunc func(n domain.Negotiation, party domain.Party) (domain.Negotiation, error)

type remoteFunc func(ctx context.Context) (domain.Negotiation, error)

// optimistic snapshots the cached record, applies the target transition
// locally, calls the remote, then commits the authoritative answer or
// restores the snapshot.
func (s *Store) optimistic(ctx context.Context, op string, id uuid.UUID, apply applyFunc, remote remoteFunc) (domain.Negotiation, error) {
	release, err := s.acquire(op, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	defer release()

	n, party, err := s.prepare(ctx, op, id)
	if err != nil {
		return domain.Negotiation{}, err
	}
	applied, err := apply(n, party)
	if err != nil {
		storeErr := wrap(op, id, err)
		s.setError(storeErr)
		return domain.Negotiation{}, storeErr
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Negotiation{}, wrap(op, id, ErrStoreClosed)
	}
	// A List or GetOne may have landed since prepare read the record.
	if current, ok := s.records[id]; ok && current.Version != n.Version {
		n = current.Clone()
		if applied, err = apply(n, party); err != nil {
			s.mu.Unlock()
			storeErr := wrap(op, id, err)
			s.setError(storeErr)
			return domain.Negotiation{}, storeErr
		}
	}
	pending := s.pending[id]
	pending.optimistic = true
	pending.snapshot = s.records[id].Clone()
	s.putLocked(applied)
	pending.generation = s.generations[id]
	s.loading++
	s.lastErr = nil
	s.mu.Unlock()
	s.publish(ctx, events.CacheOptimistic, &applied)

	result, err := remote(ctx)
	if err != nil {
		storeErr := wrap(op, id, err)

		s.mu.Lock()
		restored := s.generations[id] == pending.generation
		if restored {
			s.putLocked(pending.snapshot)
		}
		if storeErr.Class == ConflictError {
			s.markStaleLocked(id)
		}
		s.loading--
		s.lastErr = storeErr
		s.mu.Unlock()

		s.log.OptimisticRollback(op, id.String(), restored, err)
		if restored {
			s.publish(ctx, events.CacheRolledBack, &pending.snapshot)
		}
		return domain.Negotiation{}, storeErr
	}

	s.mu.Lock()
	s.mergeLocked(result)
	pending.optimistic = false
	s.loading--
	s.mu.Unlock()

	s.publish(ctx, events.CacheCommitted, &result)
	s.persist(ctx)
	return result.Clone(), nil
}

// acquire registers op as the only operation in flight for id.
func (s *Store) acquire(op string, id uuid.UUID) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, wrap(op, id, ErrStoreClosed)
	}
	if _, busy := s.pending[id]; busy {
		return nil, &Error{Class: ConflictError, Op: op, NegotiationID: id, Err: ErrOperationInFlight}
	}

	entry := &pendingOp{op: op}
	s.pending[id] = entry
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pending[id] == entry {
			delete(s.pending, id)
		}
	}, nil
}

// prepare returns a record fresh enough to evaluate guards against and the
// caller's party in it. Uncached or stale records are fetched first.
func (s *Store) prepare(ctx context.Context, op string, id uuid.UUID) (domain.Negotiation, domain.Party, error) {
	s.mu.RLock()
	n, cached := s.records[id]
	_, stale := s.stale[id]
	s.mu.RUnlock()

	if !cached || stale || n.NeedsRefresh(s.now()) {
		fresh, err := s.fetch(ctx, op, id)
		if err != nil {
			return domain.Negotiation{}, "", err
		}
		n = fresh
	}

	party, err := n.PartyOf(s.userID)
	if err != nil {
		storeErr := wrap(op, id, err)
		s.setError(storeErr)
		return domain.Negotiation{}, "", storeErr
	}
	return n, party, nil
}
