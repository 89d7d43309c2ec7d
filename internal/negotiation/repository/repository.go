// Package repository persists negotiations for the reference service.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the postgres implementation of ports.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.Repository = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const negotiationColumns = `
	n.id, n.buyer_id, n.buyer_name, n.dealer_id, n.status,
	n.accepted_amount::text, n.accepted_currency, n.rejection_reason,
	n.expires_at, n.created_at, n.updated_at, n.version,
	v.id, v.dealer_id, v.dealer_name, v.title, v.asking_amount::text, v.asking_currency, v.primary_image_url`

const negotiationFrom = `
	FROM negotiations n
	JOIN vehicles v ON v.id = n.vehicle_id`

func (r *Repository) GetVehicle(ctx context.Context, id uuid.UUID) (domain.VehicleRef, error) {
	var (
		v            domain.VehicleRef
		amount, curr string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, dealer_id, dealer_name, title, asking_amount::text, asking_currency, primary_image_url
		FROM vehicles
		WHERE id = $1`, id).Scan(&v.ID, &v.DealerID, &v.DealerName, &v.Title, &amount, &curr, &v.PrimaryImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VehicleRef{}, domain.Fail("GetVehicle", domain.ErrVehicleNotFound)
	}
	if err != nil {
		return domain.VehicleRef{}, fmt.Errorf("pool.QueryRow: %w", err)
	}

	v.AskingPrice, err = domain.NewMoney(amount, curr)
	if err != nil {
		return domain.VehicleRef{}, fmt.Errorf("vehicle %s asking price: %w", id, err)
	}
	return v, nil
}

func (r *Repository) UpsertVehicle(ctx context.Context, v domain.VehicleRef) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vehicles (id, dealer_id, dealer_name, title, asking_amount, asking_currency, primary_image_url)
		VALUES ($1, $2, $3, $4, ($5::text)::numeric, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			dealer_id = EXCLUDED.dealer_id,
			dealer_name = EXCLUDED.dealer_name,
			title = EXCLUDED.title,
			asking_amount = EXCLUDED.asking_amount,
			asking_currency = EXCLUDED.asking_currency,
			primary_image_url = EXCLUDED.primary_image_url`,
		v.ID, v.DealerID, v.DealerName, v.Title, v.AskingPrice.Amount.String(), v.AskingPrice.Currency.String(), v.PrimaryImageURL)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Negotiation, error) {
	return getNegotiation(ctx, r.pool, id)
}

func getNegotiation(ctx context.Context, q querier, id uuid.UUID) (domain.Negotiation, error) {
	row := q.QueryRow(ctx, `SELECT `+negotiationColumns+negotiationFrom+` WHERE n.id = $1`, id)
	n, err := scanNegotiation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Negotiation{}, domain.Fail("Get", domain.ErrNegotiationNotFound)
	}
	if err != nil {
		return domain.Negotiation{}, err
	}

	offers, err := loadOffers(ctx, q, []uuid.UUID{id})
	if err != nil {
		return domain.Negotiation{}, err
	}
	n.Offers = offers[id]
	return n, nil
}

// List returns one page of the negotiations userID takes part in, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, query ports.ListQuery) (ports.Page, error) {
	where, args := listWhere(userID, query.Filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM negotiations n WHERE `+where, args...).Scan(&total); err != nil {
		return ports.Page{}, fmt.Errorf("count negotiations: %w", err)
	}

	page := ports.Page{Page: query.Page, PageSize: query.PageSize, Total: total}
	offset := (query.Page - 1) * query.PageSize
	if total == 0 || offset >= total {
		return page, nil
	}

	args = append(args, query.PageSize, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY n.created_at DESC, n.id LIMIT $%d OFFSET $%d`,
		negotiationColumns, negotiationFrom, where, len(args)-1, len(args)), args...)
	if err != nil {
		return ports.Page{}, fmt.Errorf("pool.Query: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return ports.Page{}, err
		}
		page.Items = append(page.Items, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return ports.Page{}, fmt.Errorf("rows.Err: %w", err)
	}

	offers, err := loadOffers(ctx, r.pool, ids)
	if err != nil {
		return ports.Page{}, err
	}
	for i := range page.Items {
		page.Items[i].Offers = offers[page.Items[i].ID]
	}
	return page, nil
}

func listWhere(userID uuid.UUID, filter domain.ListFilter) (string, []any) {
	where := `(n.buyer_id = $1 OR n.dealer_id = $1)`
	args := []any{userID}

	if filter.Party != nil {
		switch *filter.Party {
		case domain.PartyBuyer:
			where = `n.buyer_id = $1`
		case domain.PartyDealer:
			where = `n.dealer_id = $1`
		}
	}
	if filter.Status != nil {
		args = append(args, filter.Status.String())
		where += fmt.Sprintf(` AND n.status = $%d`, len(args))
	}
	return where, args
}

func (r *Repository) Insert(ctx context.Context, n domain.Negotiation) error {
	_, err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO negotiations (
				id, vehicle_id, buyer_id, buyer_name, dealer_id, status,
				accepted_amount, accepted_currency, rejection_reason,
				expires_at, created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, ($7::text)::numeric, $8, $9, $10, $11, $12, 1)`,
			n.ID, n.Vehicle.ID, n.Buyer.ID, n.Buyer.DisplayName, n.Dealer.ID, n.Status.String(),
			acceptedAmount(n), acceptedCurrency(n), n.RejectionReason,
			n.ExpiresAt, n.CreatedAt, n.UpdatedAt)
		if err != nil {
			return struct{}{}, fmt.Errorf("insert negotiation: %w", err)
		}
		return struct{}{}, insertOffers(ctx, tx, n)
	})
	return err
}

// Update writes n under optimistic locking and returns the stored row.
func (r *Repository) Update(ctx context.Context, n domain.Negotiation, expectedVersion int64) (domain.Negotiation, error) {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) (domain.Negotiation, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE negotiations SET
				status = $3,
				accepted_amount = ($4::text)::numeric,
				accepted_currency = $5,
				rejection_reason = $6,
				updated_at = $7,
				version = version + 1
			WHERE id = $1 AND version = $2`,
			n.ID, expectedVersion, n.Status.String(),
			acceptedAmount(n), acceptedCurrency(n), n.RejectionReason, n.UpdatedAt)
		if err != nil {
			return domain.Negotiation{}, fmt.Errorf("update negotiation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM negotiations WHERE id = $1)`, n.ID).Scan(&exists); err != nil {
				return domain.Negotiation{}, fmt.Errorf("check negotiation: %w", err)
			}
			if !exists {
				return domain.Negotiation{}, domain.Fail("Update", domain.ErrNegotiationNotFound)
			}
			return domain.Negotiation{}, domain.Fail("Update", domain.ErrConcurrentUpdate)
		}

		if err := insertOffers(ctx, tx, n); err != nil {
			return domain.Negotiation{}, err
		}
		return getNegotiation(ctx, tx, n.ID)
	})
}

// ListExpirable returns active negotiations whose expiry has passed, oldest first.
func (r *Repository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM negotiations
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return ids, nil
}

// insertOffers writes every offer of n; offers already stored are left as is.
func insertOffers(ctx context.Context, tx pgx.Tx, n domain.Negotiation) error {
	batch := &pgx.Batch{}
	for _, o := range n.Offers {
		batch.Queue(`
			INSERT INTO negotiation_offers (id, negotiation_id, amount, currency, offered_by, message, created_at)
			VALUES ($1, $2, ($3::text)::numeric, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			o.ID, n.ID, o.Amount.Amount.String(), o.Amount.Currency.String(), o.OfferedBy.String(), o.Message, o.CreatedAt)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert offers: %w", err)
	}
	return nil
}

func loadOffers(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID][]domain.Offer, error) {
	out := make(map[uuid.UUID][]domain.Offer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.Query(ctx, `
		SELECT negotiation_id, id, amount::text, currency, offered_by, message, created_at
		FROM negotiation_offers
		WHERE negotiation_id = ANY($1::uuid[])
		ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			negotiationID           uuid.UUID
			o                       domain.Offer
			amount, curr, offeredBy string
		)
		if err := rows.Scan(&negotiationID, &o.ID, &amount, &curr, &offeredBy, &o.Message, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		if o.Amount, err = domain.NewMoney(amount, curr); err != nil {
			return nil, fmt.Errorf("offer %s amount: %w", o.ID, err)
		}
		if o.OfferedBy, err = domain.ParseParty(offeredBy); err != nil {
			return nil, fmt.Errorf("offer %s party: %w", o.ID, err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		out[negotiationID] = append(out[negotiationID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return out, nil
}

func scanNegotiation(row pgx.Row) (domain.Negotiation, error) {
	var (
		n                         domain.Negotiation
		status                    string
		acceptedAmt, acceptedCurr *string
		askingAmt, askingCurr     string
	)
	err := row.Scan(
		&n.ID, &n.Buyer.ID, &n.Buyer.DisplayName, &n.Dealer.ID, &status,
		&acceptedAmt, &acceptedCurr, &n.RejectionReason,
		&n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt, &n.Version,
		&n.Vehicle.ID, &n.Vehicle.DealerID, &n.Vehicle.DealerName, &n.Vehicle.Title, &askingAmt, &askingCurr, &n.Vehicle.PrimaryImageURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Negotiation{}, err
	}
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("scan negotiation: %w", err)
	}

	if n.Status, err = domain.ParseStatus(status); err != nil {
		return domain.Negotiation{}, err
	}
	if n.Vehicle.AskingPrice, err = domain.NewMoney(askingAmt, askingCurr); err != nil {
		return domain.Negotiation{}, fmt.Errorf("negotiation %s asking price: %w", n.ID, err)
	}
	if acceptedAmt != nil {
		price, err := domain.NewMoney(*acceptedAmt, deref(acceptedCurr))
		if err != nil {
			return domain.Negotiation{}, fmt.Errorf("negotiation %s accepted price: %w", n.ID, err)
		}
		n.AcceptedPrice = &price
	}
	n.Dealer.DisplayName = n.Vehicle.DealerName
	n.ExpiresAt = n.ExpiresAt.UTC()
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return n, nil
}

func acceptedAmount(n domain.Negotiation) *string {
	if n.AcceptedPrice == nil {
		return nil
	}
	s := n.AcceptedPrice.Amount.String()
	return &s
}

func acceptedCurrency(n domain.Negotiation) *string {
	if n.AcceptedPrice == nil {
		return nil
	}
	s := n.AcceptedPrice.Currency.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
