package port

import (
	"context"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

type InventoryStore interface {
	// GetMovie returns the movie and, inside a transaction, holds it against
	// concurrent stock changes until commit or rollback.
	GetMovie(ctx context.Context, id string) (*domain.Movie, error)

	// AdjustStock adds delta to numberInStock. It returns domain.ErrConflict
	// when the change would take the counter below zero.
	AdjustStock(ctx context.Context, id string, delta int) error
}

type RentalStore interface {
	// GetRental returns the rental and, inside a transaction, locks it.
	GetRental(ctx context.Context, id string) (*domain.Rental, error)

	// CreateRental persists r and returns it with its generated id.
	CreateRental(ctx context.Context, r *domain.Rental) (*domain.Rental, error)

	UpdateRental(ctx context.Context, id string, patch domain.RentalPatch) (*domain.Rental, error)

	// DeleteRental removes the rental and returns its last state.
	DeleteRental(ctx context.Context, id string) (*domain.Rental, error)
}

type CustomerReader interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
}

// TxStores are store handles bound to one open transaction.
type TxStores struct {
	Inventory InventoryStore
	Rentals   RentalStore
	Customers CustomerReader
}

// Transactor runs fn inside a scoped transaction. The transaction commits
// only when fn returns nil; any error or panic rolls every write back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s TxStores) error) error
}

type GenreStore interface {
	CreateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error)
	GetGenre(ctx context.Context, id string) (*domain.Genre, error)
	UpdateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error)
	DeleteGenre(ctx context.Context, id string) (*domain.Genre, error)
}

type MovieStore interface {
	CreateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error)
	GetMovie(ctx context.Context, id string) (*domain.Movie, error)
	UpdateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error)
	DeleteMovie(ctx context.Context, id string) (*domain.Movie, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) (*domain.User, error)
}

// CatalogStore is the plain CRUD surface outside the rental transaction.
type CatalogStore interface {
	GenreStore
	MovieStore
	CustomerStore
	UserStore
	GetRental(ctx context.Context, id string) (*domain.Rental, error)
}
