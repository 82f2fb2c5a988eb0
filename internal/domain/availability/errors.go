package availability

import "errors"

var (
	ErrInvalidRange            = errors.New("time range start must be before end")
	ErrInvalidDuration         = errors.New("slot duration must be positive and fit inside the range")
	ErrOverlappingAvailability = errors.New("range overlaps an existing availability block for this provider")
	ErrBlockNotFound           = errors.New("availability block not found")
	ErrBlockWithdrawn          = errors.New("availability block has been withdrawn")
	ErrBlockHasActiveBookings  = errors.New("availability block has held or booked slots")
	ErrSlotNotFound            = errors.New("slot not found")
	ErrSlotUnavailable         = errors.New("slot is no longer available")
)
