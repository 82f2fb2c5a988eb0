package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListQuery) (*PagedAppointments, error)

	// ClaimSlot is the atomic heart of the engine: transition the slot
	// free → held and insert the pending appointment as one transaction.
	// If the slot is not currently free it returns
	// availability.ErrSlotUnavailable and nothing is written.
	ClaimSlot(ctx context.Context, a *Appointment, holdExpiresAt time.Time) error

	// CommitTransition applies a coupled appointment+slot transition.
	// Both legs are conditional updates guarded by the from-states; if
	// either matches zero rows the transaction rolls back with
	// ErrInvalidStatusTransition.
	CommitTransition(ctx context.Context, t *Transition) error

	// ExpireHolds reverts every held slot whose deadline is at or before
	// now back to free and cancels its pending appointment with reason
	// hold_expired. Each slot is reverted under the same conditional-update
	// guard as CommitTransition, so a concurrent confirm can never lose a
	// slot it already won. Returns the number of holds expired.
	ExpireHolds(ctx context.Context, now time.Time) (int, error)

	// CreateRating records the one allowed rating for an appointment,
	// returning ErrAlreadyRated on a duplicate.
	CreateRating(ctx context.Context, r *Rating) error
}
