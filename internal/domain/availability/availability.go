package availability

import (
	"time"

	"github.com/google/uuid"
)

type BlockStatus string

const (
	BlockActive    BlockStatus = "active"
	BlockWithdrawn BlockStatus = "withdrawn"
)

// AvailabilityBlock is a provider-declared contiguous time range offered
// for booking. Active blocks of the same provider never overlap; that is
// enforced at publish time, so slot non-overlap follows for free.
type AvailabilityBlock struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`

	Range            TimeRange   `gorm:"embedded"`
	SlotDurationMins int         `gorm:"column:slot_duration_mins;not null"`
	Status           BlockStatus `gorm:"column:status;type:varchar(20);not null;default:'active';index"`
}

func (AvailabilityBlock) TableName() string {
	return "booking.availability_blocks"
}

// Slot state transitions:
//
//	free → held → booked → {completed | cancelled | no_show}
//	free → cancelled (block withdrawal)
//	held → free      (hold expiry)
//	held → cancelled (cancel while pending)
//
// A slot never goes from booked back to free: cancelled time is retired,
// not recycled, so historical appointment references stay valid.
type SlotState string

const (
	SlotFree      SlotState = "free"
	SlotHeld      SlotState = "held"
	SlotBooked    SlotState = "booked"
	SlotCompleted SlotState = "completed"
	SlotCancelled SlotState = "cancelled"
	SlotNoShow    SlotState = "no_show"
)

// Slot is one fixed-duration bookable sub-interval of a block. Its state
// column is the single serialization point for booking conflicts: every
// state change is a conditional update guarded by the current state.
type Slot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	AvailabilityBlockID uuid.UUID `gorm:"column:availability_block_id;type:uuid;not null;index"`
	ProviderID          uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`

	Range TimeRange `gorm:"embedded"`
	State SlotState `gorm:"column:state;type:varchar(20);not null;default:'free';index"`

	// HoldExpiresAt is set while the slot is held; past the deadline the
	// sweep (or a lazy check) reverts the slot to free.
	HoldExpiresAt *time.Time `gorm:"column:hold_expires_at;index"`
}

func (Slot) TableName() string {
	return "booking.slots"
}

func (s *Slot) CanTransitionTo(next SlotState) bool {
	allowed := map[SlotState][]SlotState{
		SlotFree:      {SlotHeld, SlotCancelled},
		SlotHeld:      {SlotBooked, SlotFree, SlotCancelled},
		SlotBooked:    {SlotCompleted, SlotCancelled, SlotNoShow},
		SlotCompleted: {},
		SlotCancelled: {},
		SlotNoShow:    {},
	}

	for _, st := range allowed[s.State] {
		if st == next {
			return true
		}
	}
	return false
}

// Occupied reports whether the slot's time is exclusively taken.
func (s *Slot) Occupied() bool {
	return s.State == SlotHeld || s.State == SlotBooked
}

// HoldExpired reports whether a held slot's claim deadline has passed.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.State == SlotHeld && s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt)
}
