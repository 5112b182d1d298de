package port

import (
	"context"

	"github.com/punchamoorthee/rentalops/internal/domain"
)

// EventPublisher delivers committed rental transitions to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RentalEvent) error
}
