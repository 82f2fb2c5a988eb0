package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateBlock persists a block and its generated slots as one unit. The
	// store itself guards against a concurrent publish slipping past the
	// caller's overlap read: if the range collides with another active block
	// of the provider at commit time it fails with ErrOverlappingAvailability.
	CreateBlock(ctx context.Context, b *AvailabilityBlock, slots []*Slot) error

	GetBlock(ctx context.Context, id uuid.UUID) (*AvailabilityBlock, error)

	// HasOverlap checks whether [start, end) overlaps any *active* block of
	// the provider. Withdrawn blocks and retired slots never count.
	HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error)

	// WithdrawBlock marks the block withdrawn and cascades its free slots to
	// cancelled, failing with ErrBlockHasActiveBookings if any slot is held
	// or booked. The check and the cascade are one transaction.
	WithdrawBlock(ctx context.Context, id uuid.UUID) error

	// ListFreeSlots returns the provider's free slots intersecting the
	// window, ordered by start time ascending.
	ListFreeSlots(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]*Slot, error)

	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
}
