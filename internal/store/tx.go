package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/port"
)

// WithinTx implements port.Transactor. Reads made through the tx stores take
// row locks (SELECT ... FOR UPDATE), so two transactions touching the same
// movie or rental run one after the other.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st port.TxStores) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds()))
		if err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	ts := &txStores{tx: tx}
	if err := fn(ctx, port.TxStores{Inventory: ts, Rentals: ts, Customers: ts}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "transaction", "commit")
	}
	return nil
}

type txStores struct {
	tx pgx.Tx
}

func (t *txStores) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	return getMovie(ctx, t.tx, id, true)
}

func (t *txStores) AdjustStock(ctx context.Context, id string, delta int) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE movies SET number_in_stock = number_in_stock + $1 WHERE id = $2 AND number_in_stock + $1 >= 0",
		delta, id,
	)
	if err != nil {
		return mapError(err, "movie", id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM movies WHERE id = $1)", id).Scan(&exists); err != nil {
		return mapError(err, "movie", id)
	}
	if !exists {
		return domain.NewNotFoundError("movie", id)
	}
	return fmt.Errorf("movie %s stock would drop below zero: %w", id, domain.ErrConflict)
}

func (t *txStores) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, t.tx, id)
}

func (t *txStores) GetRental(ctx context.Context, id string) (*domain.Rental, error) {
	return getRental(ctx, t.tx, id, true)
}

func (t *txStores) CreateRental(ctx context.Context, r *domain.Rental) (*domain.Rental, error) {
	created := *r
	created.ID = newID(r.ID)
	_, err := t.tx.Exec(ctx,
		"INSERT INTO rentals ("+rentalColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		created.ID,
		created.Customer.ID, created.Customer.Name, created.Customer.Phone,
		created.Movie.ID, created.Movie.Title, created.Movie.DailyRentalRate,
		created.DateOut, created.DateIn, created.RentalFee,
	)
	if err != nil {
		return nil, mapError(err, "rental", created.ID)
	}
	return &created, nil
}

func (t *txStores) UpdateRental(ctx context.Context, id string, patch domain.RentalPatch) (*domain.Rental, error) {
	r, err := scanRental(t.tx.QueryRow(ctx,
		"UPDATE rentals SET date_in = COALESCE($2, date_in) WHERE id = $1 RETURNING "+rentalColumns,
		id, patch.DateIn,
	))
	if err != nil {
		return nil, mapError(err, "rental", id)
	}
	return r, nil
}

func (t *txStores) DeleteRental(ctx context.Context, id string) (*domain.Rental, error) {
	r, err := scanRental(t.tx.QueryRow(ctx, "DELETE FROM rentals WHERE id = $1 RETURNING "+rentalColumns, id))
	if err != nil {
		return nil, mapError(err, "rental", id)
	}
	return r, nil
}

const rentalColumns = "id, customer_id, customer_name, customer_phone, movie_id, movie_title, " +
	"movie_daily_rental_rate, date_out, date_in, rental_fee"

func scanRental(row pgx.Row) (*domain.Rental, error) {
	var r domain.Rental
	err := row.Scan(
		&r.ID,
		&r.Customer.ID, &r.Customer.Name, &r.Customer.Phone,
		&r.Movie.ID, &r.Movie.Title, &r.Movie.DailyRentalRate,
		&r.DateOut, &r.DateIn, &r.RentalFee,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func getRental(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Rental, error) {
	query := "SELECT " + rentalColumns + " FROM rentals WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	r, err := scanRental(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "rental", id)
	}
	return r, nil
}
