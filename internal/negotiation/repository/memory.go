package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"

	"github.com/google/uuid"
)

// Memory is an in-process ports.Repository used by tests and by the api
// when NEGOTIATION_STORAGE=memory.
type Memory struct {
	mu           sync.RWMutex
	vehicles     map[uuid.UUID]domain.VehicleRef
	negotiations map[uuid.UUID]domain.Negotiation
}

var _ ports.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		vehicles:     make(map[uuid.UUID]domain.VehicleRef),
		negotiations: make(map[uuid.UUID]domain.Negotiation),
	}
}

func (m *Memory) GetVehicle(_ context.Context, id uuid.UUID) (domain.VehicleRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vehicles[id]
	if !ok {
		return domain.VehicleRef{}, domain.Fail("GetVehicle", domain.ErrVehicleNotFound)
	}
	return v, nil
}

func (m *Memory) UpsertVehicle(_ context.Context, v domain.VehicleRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vehicles[v.ID] = v
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (domain.Negotiation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.negotiations[id]
	if !ok {
		return domain.Negotiation{}, domain.Fail("Get", domain.ErrNegotiationNotFound)
	}
	return n.Clone(), nil
}

func (m *Memory) List(_ context.Context, userID uuid.UUID, query ports.ListQuery) (ports.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.Negotiation
	for _, n := range m.negotiations {
		if query.Filter.Matches(n, userID) {
			matched = append(matched, n.Clone())
		}
	}
	slices.SortFunc(matched, func(a, b domain.Negotiation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	page := ports.Page{Page: query.Page, PageSize: query.PageSize, Total: len(matched)}
	start := (query.Page - 1) * query.PageSize
	if start < 0 || start >= len(matched) {
		return page, nil
	}
	end := min(start+query.PageSize, len(matched))
	page.Items = matched[start:end]
	return page, nil
}

func (m *Memory) Insert(_ context.Context, n domain.Negotiation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vehicles[n.Vehicle.ID]; !ok {
		return domain.Fail("Insert", domain.ErrVehicleNotFound)
	}
	if _, ok := m.negotiations[n.ID]; ok {
		return domain.Fail("Insert", domain.ErrConcurrentUpdate)
	}
	stored := n.Clone()
	stored.Version = 1
	m.negotiations[n.ID] = stored
	return nil
}

func (m *Memory) Update(_ context.Context, n domain.Negotiation, expectedVersion int64) (domain.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.negotiations[n.ID]
	if !ok {
		return domain.Negotiation{}, domain.Fail("Update", domain.ErrNegotiationNotFound)
	}
	if current.Version != expectedVersion {
		return domain.Negotiation{}, domain.Fail("Update", domain.ErrConcurrentUpdate)
	}

	stored := n.Clone()
	stored.Version = expectedVersion + 1
	m.negotiations[n.ID] = stored
	return stored.Clone(), nil
}

func (m *Memory) ListExpirable(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []domain.Negotiation
	for _, n := range m.negotiations {
		if n.NeedsRefresh(now) {
			due = append(due, n)
		}
	}
	slices.SortFunc(due, func(a, b domain.Negotiation) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]uuid.UUID, 0, len(due))
	for _, n := range due {
		ids = append(ids, n.ID)
	}
	return ids, nil
}
