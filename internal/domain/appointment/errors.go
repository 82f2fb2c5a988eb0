package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrInvalidAppointmentType  = errors.New("invalid appointment type")
	ErrNotCompleted            = errors.New("only completed appointments can be rated")
	ErrAlreadyRated            = errors.New("appointment has already been rated")
	ErrInvalidScore            = errors.New("rating score must be between 1 and 5")
)
