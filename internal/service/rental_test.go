package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/port"
	"github.com/punchamoorthee/rentalops/internal/store/memory"
)

var (
	admin = &domain.Actor{ID: "admin-1", IsAdmin: true}
	clerk = &domain.Actor{ID: "clerk-1"}
)

// mockPublisher records events and optionally fails.
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.RentalEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.RentalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) recorded() []domain.RentalEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RentalEvent(nil), m.events...)
}

// faultyTransactor wraps a real transactor and fails one store call.
type faultyTransactor struct {
	inner      port.Transactor
	failCreate error
	failAdjust error
}

func (f *faultyTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, st port.TxStores) error) error {
	return f.inner.WithinTx(ctx, func(ctx context.Context, st port.TxStores) error {
		return fn(ctx, port.TxStores{
			Inventory: faultyInventory{InventoryStore: st.Inventory, err: f.failAdjust},
			Rentals:   faultyRentals{RentalStore: st.Rentals, err: f.failCreate},
			Customers: st.Customers,
		})
	})
}

type faultyInventory struct {
	port.InventoryStore
	err error
}

func (f faultyInventory) AdjustStock(ctx context.Context, id string, delta int) error {
	if f.err != nil {
		return f.err
	}
	return f.InventoryStore.AdjustStock(ctx, id, delta)
}

type faultyRentals struct {
	port.RentalStore
	err error
}

func (f faultyRentals) CreateRental(ctx context.Context, r *domain.Rental) (*domain.Rental, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.RentalStore.CreateRental(ctx, r)
}

type fixture struct {
	store    *memory.Store
	movie    *domain.Movie
	customer *domain.Customer
}

func newFixture(t *testing.T, stock int, rate string) fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()

	movie, err := s.CreateMovie(ctx, &domain.Movie{
		Title:           "Terminator",
		Genre:           domain.Genre{ID: "g-1", Name: "Action"},
		DailyRentalRate: decimal.RequireFromString(rate),
		NumberInStock:   stock,
	})
	if err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	customer, err := s.CreateCustomer(ctx, &domain.Customer{Name: "Alice Smith", Phone: "12345678"})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return fixture{store: s, movie: movie, customer: customer}
}

func (f fixture) stock(t *testing.T) int {
	t.Helper()
	m, err := f.store.GetMovie(context.Background(), f.movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	return m.NumberInStock
}

func fixedClock(svc *RentalService, at time.Time) {
	svc.now = func() time.Time { return at }
}

func TestOpenRental_ComputesFeeAndDecrementsStock(t *testing.T) {
	f := newFixture(t, 10, "1.1")
	svc := NewRentalService(f.store, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(svc, now)

	r, err := svc.OpenRental(context.Background(), clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("OpenRental failed: %v", err)
	}

	if !r.RentalFee.Equal(decimal.NewFromInt(11)) {
		t.Errorf("expected fee 11, got %s", r.RentalFee)
	}
	if !r.DateOut.Equal(now) {
		t.Errorf("expected dateOut %v, got %v", now, r.DateOut)
	}
	if r.DateIn != nil {
		t.Errorf("expected open rental, got dateIn %v", r.DateIn)
	}
	if r.Customer.Name != "Alice Smith" || r.Movie.Title != "Terminator" {
		t.Errorf("unexpected snapshots: %+v %+v", r.Customer, r.Movie)
	}
	if got := f.stock(t); got != 9 {
		t.Errorf("expected stock 9, got %d", got)
	}
}

func TestOpenRental_SnapshotSurvivesCatalogChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, "3")
	svc := NewRentalService(f.store, nil)

	r, err := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("OpenRental failed: %v", err)
	}

	renamed := *f.movie
	renamed.Title = "Renamed"
	renamed.NumberInStock = 1
	if _, err := f.store.UpdateMovie(ctx, &renamed); err != nil {
		t.Fatalf("UpdateMovie failed: %v", err)
	}

	stored, err := f.store.GetRental(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRental failed: %v", err)
	}
	if stored.Movie.Title != "Terminator" {
		t.Errorf("expected snapshot title to stay Terminator, got %s", stored.Movie.Title)
	}
}

func TestOpenRental_OutOfStock(t *testing.T) {
	f := newFixture(t, 0, "2")
	svc := NewRentalService(f.store, nil)

	_, err := svc.OpenRental(context.Background(), clerk, f.customer.ID, f.movie.ID)
	if !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if got := f.stock(t); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestOpenRental_UnknownIDs(t *testing.T) {
	tests := []struct {
		name       string
		customerID func(fixture) string
		movieID    func(fixture) string
	}{
		{
			name:       "unknown movie",
			customerID: func(f fixture) string { return f.customer.ID },
			movieID:    func(fixture) string { return "00000000-0000-0000-0000-000000000000" },
		},
		{
			name:       "unknown customer",
			customerID: func(fixture) string { return "00000000-0000-0000-0000-000000000000" },
			movieID:    func(f fixture) string { return f.movie.ID },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 5, "2")
			pub := &mockPublisher{}
			svc := NewRentalService(f.store, pub)

			_, err := svc.OpenRental(context.Background(), clerk, tt.customerID(f), tt.movieID(f))
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if got := f.stock(t); got != 5 {
				t.Errorf("expected stock untouched at 5, got %d", got)
			}
			if len(pub.recorded()) != 0 {
				t.Errorf("expected no events, got %d", len(pub.recorded()))
			}
		})
	}
}

func TestOpenRental_RequiresActor(t *testing.T) {
	f := newFixture(t, 1, "2")
	svc := NewRentalService(f.store, nil)

	_, err := svc.OpenRental(context.Background(), nil, f.customer.ID, f.movie.ID)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if got := f.stock(t); got != 1 {
		t.Errorf("expected stock 1, got %d", got)
	}
}

func TestOpenRental_RollsBackOnStoreFailure(t *testing.T) {
	boom := errors.New("disk full")

	tests := []struct {
		name string
		tx   func(inner port.Transactor) port.Transactor
	}{
		{"create fails", func(inner port.Transactor) port.Transactor {
			return &faultyTransactor{inner: inner, failCreate: boom}
		}},
		{"stock adjust fails after insert", func(inner port.Transactor) port.Transactor {
			return &faultyTransactor{inner: inner, failAdjust: boom}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 3, "2")
			pub := &mockPublisher{}
			svc := NewRentalService(tt.tx(f.store), pub)

			_, err := svc.OpenRental(context.Background(), clerk, f.customer.ID, f.movie.ID)
			if !errors.Is(err, boom) {
				t.Fatalf("expected injected error, got %v", err)
			}
			if got := f.stock(t); got != 3 {
				t.Errorf("expected stock 3 after rollback, got %d", got)
			}
			if len(pub.recorded()) != 0 {
				t.Errorf("expected no events after rollback")
			}
		})
	}
}

func TestCloseRental_ReturnsUnitOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, "2")
	svc := NewRentalService(f.store, nil)

	r, err := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("OpenRental failed: %v", err)
	}

	dateIn := time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)
	closed, err := svc.CloseRental(ctx, clerk, r.ID, dateIn)
	if err != nil {
		t.Fatalf("CloseRental failed: %v", err)
	}
	if closed.DateIn == nil || !closed.DateIn.Equal(dateIn) {
		t.Errorf("expected dateIn %v, got %v", dateIn, closed.DateIn)
	}
	if !closed.RentalFee.Equal(r.RentalFee) {
		t.Errorf("fee changed on close: %s -> %s", r.RentalFee, closed.RentalFee)
	}
	if got := f.stock(t); got != 1 {
		t.Errorf("expected stock 1 after close, got %d", got)
	}

	_, err = svc.CloseRental(ctx, clerk, r.ID, time.Time{})
	if !errors.Is(err, domain.ErrRentalAlreadyReturned) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrRentalAlreadyReturned, got %v", err)
	}
	if got := f.stock(t); got != 1 {
		t.Errorf("expected stock to stay 1, got %d", got)
	}
}

func TestCloseRental_DefaultsDateInToNow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, "2")
	svc := NewRentalService(f.store, nil)
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	fixedClock(svc, now)

	r, err := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("OpenRental failed: %v", err)
	}
	closed, err := svc.CloseRental(ctx, clerk, r.ID, time.Time{})
	if err != nil {
		t.Fatalf("CloseRental failed: %v", err)
	}
	if closed.DateIn == nil || !closed.DateIn.Equal(now) {
		t.Errorf("expected dateIn %v, got %v", now, closed.DateIn)
	}
}

func TestCloseRental_UnknownRental(t *testing.T) {
	f := newFixture(t, 1, "2")
	svc := NewRentalService(f.store, nil)

	_, err := svc.CloseRental(context.Background(), clerk, "missing", time.Time{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelRental(t *testing.T) {
	ctx := context.Background()

	t.Run("admin restores stock", func(t *testing.T) {
		f := newFixture(t, 10, "1.1")
		svc := NewRentalService(f.store, nil)
		r, err := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
		if err != nil {
			t.Fatalf("OpenRental failed: %v", err)
		}

		deleted, err := svc.CancelRental(ctx, admin, r.ID)
		if err != nil {
			t.Fatalf("CancelRental failed: %v", err)
		}
		if deleted.ID != r.ID || !deleted.RentalFee.Equal(r.RentalFee) {
			t.Errorf("expected pre-delete snapshot, got %+v", deleted)
		}
		if got := f.stock(t); got != 10 {
			t.Errorf("expected stock 10, got %d", got)
		}
		if _, err := f.store.GetRental(ctx, r.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected rental gone, got %v", err)
		}
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		f := newFixture(t, 10, "1.1")
		svc := NewRentalService(f.store, nil)
		r, _ := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)

		_, err := svc.CancelRental(ctx, clerk, r.ID)
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if got := f.stock(t); got != 9 {
			t.Errorf("expected stock 9, got %d", got)
		}
		if _, err := f.store.GetRental(ctx, r.ID); err != nil {
			t.Errorf("expected rental kept, got %v", err)
		}
	})

	t.Run("missing actor", func(t *testing.T) {
		f := newFixture(t, 1, "1")
		svc := NewRentalService(f.store, nil)
		if _, err := svc.CancelRental(ctx, nil, "r-1"); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("returned rental does not restock twice", func(t *testing.T) {
		f := newFixture(t, 1, "1")
		svc := NewRentalService(f.store, nil)
		r, _ := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
		if _, err := svc.CloseRental(ctx, clerk, r.ID, time.Time{}); err != nil {
			t.Fatalf("CloseRental failed: %v", err)
		}

		if _, err := svc.CancelRental(ctx, admin, r.ID); err != nil {
			t.Fatalf("CancelRental failed: %v", err)
		}
		if got := f.stock(t); got != 1 {
			t.Errorf("expected stock 1, got %d", got)
		}
	})

	t.Run("unknown rental", func(t *testing.T) {
		f := newFixture(t, 1, "1")
		svc := NewRentalService(f.store, nil)
		if _, err := svc.CancelRental(ctx, admin, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOpenRental_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t, 1, "2")
	svc := NewRentalService(f.store, nil)

	const workers = 50
	var wg sync.WaitGroup
	var success, rejected int32
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.OpenRental(context.Background(), clerk, f.customer.ID, f.movie.ID)
			switch {
			case err == nil:
				atomic.AddInt32(&success, 1)
			case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrConflict):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if success != 1 {
		t.Errorf("expected exactly 1 success, got %d", success)
	}
	if rejected != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, rejected)
	}
	if got := f.stock(t); got != 0 {
		t.Errorf("expected final stock 0, got %d", got)
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, "2")
	pub := &mockPublisher{}
	svc := NewRentalService(f.store, pub)

	r, err := svc.OpenRental(ctx, clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("OpenRental failed: %v", err)
	}
	if _, err := svc.CloseRental(ctx, clerk, r.ID, time.Time{}); err != nil {
		t.Fatalf("CloseRental failed: %v", err)
	}
	if _, err := svc.CancelRental(ctx, admin, r.ID); err != nil {
		t.Fatalf("CancelRental failed: %v", err)
	}

	events := pub.recorded()
	want := []domain.RentalEventType{domain.RentalOpened, domain.RentalClosed, domain.RentalCancelled}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.Rental.ID != r.ID {
			t.Errorf("event %d: expected rental %s, got %s", i, r.ID, e.Rental.ID)
		}
	}
	if events[2].ActorID != admin.ID {
		t.Errorf("expected cancel actor %s, got %s", admin.ID, events[2].ActorID)
	}
}

func TestPublishFailureKeepsCommittedResult(t *testing.T) {
	f := newFixture(t, 2, "2")
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := NewRentalService(f.store, pub)

	r, err := svc.OpenRental(context.Background(), clerk, f.customer.ID, f.movie.ID)
	if err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
	if r == nil || r.ID == "" {
		t.Fatal("expected committed rental")
	}
	if got := f.stock(t); got != 1 {
		t.Errorf("expected stock 1, got %d", got)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.NewNotFoundError("movie", "1"), "not_found"},
		{domain.ErrOutOfStock, "out_of_stock"},
		{domain.ErrRentalAlreadyReturned, "conflict"},
		{domain.ErrForbidden, "denied"},
		{domain.ErrUnauthenticated, "denied"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
