// Package memory is a process-local store. Rental transactions run one at a
// time under the store's writer lock and stage their writes until commit.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/port"
)

type Store struct {
	mu        sync.RWMutex
	genres    map[string]domain.Genre
	movies    map[string]domain.Movie
	customers map[string]domain.Customer
	users     map[string]domain.User
	rentals   map[string]domain.Rental
}

func NewStore() *Store {
	return &Store{
		genres:    make(map[string]domain.Genre),
		movies:    make(map[string]domain.Movie),
		customers: make(map[string]domain.Customer),
		users:     make(map[string]domain.User),
		rentals:   make(map[string]domain.Rental),
	}
}

// WithinTx implements port.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st port.TxStores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &tx{
		store:   s,
		movies:  make(map[string]domain.Movie),
		rentals: make(map[string]*domain.Rental),
	}
	if err := fn(ctx, port.TxStores{Inventory: tx, Rentals: tx, Customers: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// tx stages movie and rental writes. A nil rental entry marks a delete.
type tx struct {
	store   *Store
	movies  map[string]domain.Movie
	rentals map[string]*domain.Rental
}

func (t *tx) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	if m, ok := t.movies[id]; ok {
		return &m, nil
	}
	m, ok := t.store.movies[id]
	if !ok {
		return nil, domain.NewNotFoundError("movie", id)
	}
	return &m, nil
}

func (t *tx) AdjustStock(ctx context.Context, id string, delta int) error {
	m, err := t.GetMovie(ctx, id)
	if err != nil {
		return err
	}
	if m.NumberInStock+delta < 0 {
		return domain.ErrConflict
	}
	m.NumberInStock += delta
	t.movies[id] = *m
	return nil
}

func (t *tx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, ok := t.store.customers[id]
	if !ok {
		return nil, domain.NewNotFoundError("customer", id)
	}
	return &c, nil
}

func (t *tx) GetRental(ctx context.Context, id string) (*domain.Rental, error) {
	if r, ok := t.rentals[id]; ok {
		if r == nil {
			return nil, domain.NewNotFoundError("rental", id)
		}
		return cloneRental(r), nil
	}
	r, ok := t.store.rentals[id]
	if !ok {
		return nil, domain.NewNotFoundError("rental", id)
	}
	return cloneRental(&r), nil
}

func (t *tx) CreateRental(ctx context.Context, r *domain.Rental) (*domain.Rental, error) {
	created := cloneRental(r)
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	t.rentals[created.ID] = created
	return cloneRental(created), nil
}

func (t *tx) UpdateRental(ctx context.Context, id string, patch domain.RentalPatch) (*domain.Rental, error) {
	r, err := t.GetRental(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.DateIn != nil {
		dateIn := *patch.DateIn
		r.DateIn = &dateIn
	}
	t.rentals[id] = r
	return cloneRental(r), nil
}

func (t *tx) DeleteRental(ctx context.Context, id string) (*domain.Rental, error) {
	r, err := t.GetRental(ctx, id)
	if err != nil {
		return nil, err
	}
	t.rentals[id] = nil
	return r, nil
}

func (t *tx) commit() {
	for id, m := range t.movies {
		t.store.movies[id] = m
	}
	for id, r := range t.rentals {
		if r == nil {
			delete(t.store.rentals, id)
			continue
		}
		t.store.rentals[id] = *r
	}
}

func cloneRental(r *domain.Rental) *domain.Rental {
	c := *r
	if r.DateIn != nil {
		dateIn := *r.DateIn
		c.DateIn = &dateIn
	}
	return &c
}

func (s *Store) CreateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *g
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.genres[created.ID] = created
	return &created, nil
}

func (s *Store) GetGenre(ctx context.Context, id string) (*domain.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.genres[id]
	if !ok {
		return nil, domain.NewNotFoundError("genre", id)
	}
	return &g, nil
}

func (s *Store) UpdateGenre(ctx context.Context, g *domain.Genre) (*domain.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.genres[g.ID]; !ok {
		return nil, domain.NewNotFoundError("genre", g.ID)
	}
	s.genres[g.ID] = *g
	updated := *g
	return &updated, nil
}

func (s *Store) DeleteGenre(ctx context.Context, id string) (*domain.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.genres[id]
	if !ok {
		return nil, domain.NewNotFoundError("genre", id)
	}
	delete(s.genres, id)
	return &g, nil
}

func (s *Store) CreateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *m
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.movies[created.ID] = created
	return &created, nil
}

func (s *Store) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, domain.NewNotFoundError("movie", id)
	}
	return &m, nil
}

func (s *Store) UpdateMovie(ctx context.Context, m *domain.Movie) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[m.ID]; !ok {
		return nil, domain.NewNotFoundError("movie", m.ID)
	}
	s.movies[m.ID] = *m
	updated := *m
	return &updated, nil
}

func (s *Store) DeleteMovie(ctx context.Context, id string) (*domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, domain.NewNotFoundError("movie", id)
	}
	delete(s.movies, id)
	return &m, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *c
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.customers[created.ID] = created
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.NewNotFoundError("customer", id)
	}
	return &c, nil
}

func (s *Store) GetCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, domain.NewNotFoundError("customer", name)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		return nil, domain.NewNotFoundError("customer", c.ID)
	}
	s.customers[c.ID] = *c
	updated := *c
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.NewNotFoundError("customer", id)
	}
	delete(s.customers, id)
	return &c, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, domain.ErrDuplicate
		}
	}
	created := *u
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	s.users[created.ID] = created
	return &created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, domain.NewNotFoundError("user", email)
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return nil, domain.NewNotFoundError("user", u.ID)
	}
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return nil, domain.ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	updated := *u
	return &updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	delete(s.users, id)
	return &u, nil
}

func (s *Store) GetRental(ctx context.Context, id string) (*domain.Rental, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rentals[id]
	if !ok {
		return nil, domain.NewNotFoundError("rental", id)
	}
	return cloneRental(&r), nil
}
