package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/port"
)

const (
	opOpen   = "open"
	opClose  = "close"
	opCancel = "cancel"
)

// RentalService moves stock between a movie and its rentals. Every stock
// change is paired with exactly one rental change inside one transaction.
type RentalService struct {
	tx     port.Transactor
	events port.EventPublisher
	tracer trace.Tracer
	now    func() time.Time
}

func NewRentalService(tx port.Transactor, events port.EventPublisher) *RentalService {
	return &RentalService{
		tx:     tx,
		events: events,
		tracer: otel.Tracer("rentalops/service"),
		now:    time.Now,
	}
}

// OpenRental reserves one unit of the movie for the customer.
func (s *RentalService) OpenRental(ctx context.Context, actor *domain.Actor, customerID, movieID string) (*domain.Rental, error) {
	ctx, span := s.tracer.Start(ctx, "service.OpenRental")
	defer span.End()
	span.SetAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("movie.id", movieID),
	)

	if actor == nil {
		return nil, s.finish(ctx, span, opOpen, domain.ErrUnauthenticated)
	}

	var created *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.TxStores) error {
		// Locks the movie row so concurrent opens of the same title queue up here.
		movie, err := st.Inventory.GetMovie(ctx, movieID)
		if err != nil {
			return err
		}
		customer, err := st.Customers.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if movie.NumberInStock <= 0 {
			return domain.ErrOutOfStock
		}

		created, err = st.Rentals.CreateRental(ctx, domain.NewRental(customer, movie, s.now().UTC()))
		if err != nil {
			return err
		}
		return st.Inventory.AdjustStock(ctx, movie.ID, -1)
	})
	if err != nil {
		return nil, s.finish(ctx, span, opOpen, err)
	}

	span.SetAttributes(attribute.String("rental.id", created.ID))
	s.finish(ctx, span, opOpen, nil)
	s.publish(ctx, domain.RentalOpened, created, actor)
	return created, nil
}

// CloseRental records the return of the unit and puts it back in stock.
// A rental can be closed once; later calls fail with ErrRentalAlreadyReturned.
func (s *RentalService) CloseRental(ctx context.Context, actor *domain.Actor, rentalID string, dateIn time.Time) (*domain.Rental, error) {
	ctx, span := s.tracer.Start(ctx, "service.CloseRental")
	defer span.End()
	span.SetAttributes(attribute.String("rental.id", rentalID))

	if actor == nil {
		return nil, s.finish(ctx, span, opClose, domain.ErrUnauthenticated)
	}
	if dateIn.IsZero() {
		dateIn = s.now()
	}
	dateIn = dateIn.UTC()

	var updated *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.TxStores) error {
		rental, err := st.Rentals.GetRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if !rental.IsOpen() {
			return domain.ErrRentalAlreadyReturned
		}

		updated, err = st.Rentals.UpdateRental(ctx, rentalID, domain.RentalPatch{DateIn: &dateIn})
		if err != nil {
			return err
		}
		return st.Inventory.AdjustStock(ctx, rental.Movie.ID, 1)
	})
	if err != nil {
		return nil, s.finish(ctx, span, opClose, err)
	}

	s.finish(ctx, span, opClose, nil)
	s.publish(ctx, domain.RentalClosed, updated, actor)
	return updated, nil
}

// CancelRental deletes the rental. The unit goes back to stock unless it was
// already returned by CloseRental. Only administrators may cancel.
func (s *RentalService) CancelRental(ctx context.Context, actor *domain.Actor, rentalID string) (*domain.Rental, error) {
	ctx, span := s.tracer.Start(ctx, "service.CancelRental")
	defer span.End()
	span.SetAttributes(attribute.String("rental.id", rentalID))

	if actor == nil {
		return nil, s.finish(ctx, span, opCancel, domain.ErrUnauthenticated)
	}
	if !actor.IsAdmin {
		return nil, s.finish(ctx, span, opCancel, domain.ErrForbidden)
	}

	var deleted *domain.Rental
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st port.TxStores) error {
		rental, err := st.Rentals.GetRental(ctx, rentalID)
		if err != nil {
			return err
		}

		deleted, err = st.Rentals.DeleteRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if !rental.IsOpen() {
			return nil
		}
		return st.Inventory.AdjustStock(ctx, rental.Movie.ID, 1)
	})
	if err != nil {
		return nil, s.finish(ctx, span, opCancel, err)
	}

	s.finish(ctx, span, opCancel, nil)
	s.publish(ctx, domain.RentalCancelled, deleted, actor)
	return deleted, nil
}

func (s *RentalService) finish(ctx context.Context, span trace.Span, op string, err error) error {
	outcome := outcomeOf(err)
	lifecycleOps.WithLabelValues(op, outcome).Inc()
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if outcome == "error" {
		zerolog.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("rental transaction aborted")
	} else {
		zerolog.Ctx(ctx).Debug().Err(err).Str("operation", op).Msg("rental operation rejected")
	}
	return err
}

// publish runs after commit; a delivery failure never undoes the transaction.
func (s *RentalService) publish(ctx context.Context, typ domain.RentalEventType, r *domain.Rental, actor *domain.Actor) {
	if s.events == nil {
		return
	}
	event := domain.RentalEvent{
		Type:       typ,
		Rental:     *r,
		ActorID:    actor.ID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("event", string(typ)).
			Str("rental_id", r.ID).
			Msg("failed to publish rental event")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrForbidden):
		return "denied"
	default:
		return "error"
	}
}
