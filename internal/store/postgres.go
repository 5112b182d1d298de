package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	Db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewStore connects to Postgres. lockTimeout bounds how long a rental
// transaction waits for a row lock before failing with a conflict.
func NewStore(ctx context.Context, connString string, lockTimeout time.Duration) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool, lockTimeout: lockTimeout}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// Genres

func (s *Store) CreateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error) {
	created := *g
	created.ID = newID(g.ID)
	_, err := s.Db.Exec(ctx, "INSERT INTO genres (id, name) VALUES ($1, $2)", created.ID, created.Name)
	if err != nil {
		return nil, mapError(err, "genre", created.ID)
	}
	return &created, nil
}

func (s *Store) GetGenre(ctx context.Context, id string) (*domain.Genre, error) {
	var g domain.Genre
	err := s.Db.QueryRow(ctx, "SELECT id, name FROM genres WHERE id = $1", id).Scan(&g.ID, &g.Name)
	if err != nil {
		return nil, mapError(err, "genre", id)
	}
	return &g, nil
}

func (s *Store) UpdateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error) {
	var updated domain.Genre
	err := s.Db.QueryRow(ctx,
		"UPDATE genres SET name = $2 WHERE id = $1 RETURNING id, name",
		g.ID, g.Name,
	).Scan(&updated.ID, &updated.Name)
	if err != nil {
		return nil, mapError(err, "genre", g.ID)
	}
	return &updated, nil
}

func (s *Store) DeleteGenre(ctx context.Context, id string) (*domain.Genre, error) {
	var g domain.Genre
	err := s.Db.QueryRow(ctx, "DELETE FROM genres WHERE id = $1 RETURNING id, name", id).Scan(&g.ID, &g.Name)
	if err != nil {
		return nil, mapError(err, "genre", id)
	}
	return &g, nil
}

// Movies

const movieColumns = "id, title, genre_id, genre_name, daily_rental_rate, number_in_stock, liked"

func scanMovie(row pgx.Row) (*domain.Movie, error) {
	var m domain.Movie
	err := row.Scan(&m.ID, &m.Title, &m.Genre.ID, &m.Genre.Name, &m.DailyRentalRate, &m.NumberInStock, &m.Liked)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getMovie(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Movie, error) {
	query := "SELECT " + movieColumns + " FROM movies WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	m, err := scanMovie(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "movie", id)
	}
	return m, nil
}

func (s *Store) CreateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	created := *m
	created.ID = newID(m.ID)
	_, err := s.Db.Exec(ctx,
		"INSERT INTO movies ("+movieColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		created.ID, created.Title, created.Genre.ID, created.Genre.Name,
		created.DailyRentalRate, created.NumberInStock, created.Liked,
	)
	if err != nil {
		return nil, mapError(err, "movie", created.ID)
	}
	return &created, nil
}

func (s *Store) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	return getMovie(ctx, s.Db, id, false)
}

func (s *Store) UpdateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	updated, err := scanMovie(s.Db.QueryRow(ctx, `
		UPDATE movies
		SET title = $2, genre_id = $3, genre_name = $4, daily_rental_rate = $5, number_in_stock = $6, liked = $7
		WHERE id = $1
		RETURNING `+movieColumns,
		m.ID, m.Title, m.Genre.ID, m.Genre.Name, m.DailyRentalRate, m.NumberInStock, m.Liked,
	))
	if err != nil {
		return nil, mapError(err, "movie", m.ID)
	}
	return updated, nil
}

func (s *Store) DeleteMovie(ctx context.Context, id string) (*domain.Movie, error) {
	m, err := scanMovie(s.Db.QueryRow(ctx, "DELETE FROM movies WHERE id = $1 RETURNING "+movieColumns, id))
	if err != nil {
		return nil, mapError(err, "movie", id)
	}
	return m, nil
}

// Customers

const customerColumns = "id, name, phone, is_gold"

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.IsGold); err != nil {
		return nil, err
	}
	return &c, nil
}

func getCustomer(ctx context.Context, q querier, id string) (*domain.Customer, error) {
	c, err := scanCustomer(q.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "customer", id)
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	created := *c
	created.ID = newID(c.ID)
	_, err := s.Db.Exec(ctx,
		"INSERT INTO customers ("+customerColumns+") VALUES ($1, $2, $3, $4)",
		created.ID, created.Name, created.Phone, created.IsGold,
	)
	if err != nil {
		return nil, mapError(err, "customer", created.ID)
	}
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, s.Db, id)
}

func (s *Store) GetCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	c, err := scanCustomer(s.Db.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE name = $1 LIMIT 1", name))
	if err != nil {
		return nil, mapError(err, "customer", name)
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	updated, err := scanCustomer(s.Db.QueryRow(ctx,
		"UPDATE customers SET name = $2, phone = $3, is_gold = $4 WHERE id = $1 RETURNING "+customerColumns,
		c.ID, c.Name, c.Phone, c.IsGold,
	))
	if err != nil {
		return nil, mapError(err, "customer", c.ID)
	}
	return updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.Db.QueryRow(ctx, "DELETE FROM customers WHERE id = $1 RETURNING "+customerColumns, id))
	if err != nil {
		return nil, mapError(err, "customer", id)
	}
	return c, nil
}

// Users

const userColumns = "id, name, email, password_hash, is_admin"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	created := *u
	created.ID = newID(u.ID)
	_, err := s.Db.Exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5)",
		created.ID, created.Name, created.Email, created.PasswordHash, created.IsAdmin,
	)
	if err != nil {
		return nil, mapError(err, "user", created.Email)
	}
	return &created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.Db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.Db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if err != nil {
		return nil, mapError(err, "user", email)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	updated, err := scanUser(s.Db.QueryRow(ctx,
		"UPDATE users SET name = $2, email = $3, password_hash = $4, is_admin = $5 WHERE id = $1 RETURNING "+userColumns,
		u.ID, u.Name, u.Email, u.PasswordHash, u.IsAdmin,
	))
	if err != nil {
		return nil, mapError(err, "user", u.ID)
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.Db.QueryRow(ctx, "DELETE FROM users WHERE id = $1 RETURNING "+userColumns, id))
	if err != nil {
		return nil, mapError(err, "user", id)
	}
	return u, nil
}

// GetRental reads a rental outside any transaction.
func (s *Store) GetRental(ctx context.Context, id string) (*domain.Rental, error) {
	return getRental(ctx, s.Db, id, false)
}
