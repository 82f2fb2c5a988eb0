package notification

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSlotClaimed           EventType = "slot_claimed"
	EventAppointmentConfirmed  EventType = "appointment_confirmed"
	EventAppointmentCancelled  EventType = "appointment_cancelled"
	EventAppointmentCompleted  EventType = "appointment_completed"
	EventAppointmentNoShow     EventType = "appointment_no_show"
	EventAppointmentRated      EventType = "appointment_rated"
	EventAvailabilityWithdrawn EventType = "availability_withdrawn"
)

// Notification is a persisted inbox entry. Delivery beyond the inbox
// (email, push) is out of scope; failure to write one must never roll
// back the booking change that produced it.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Type          EventType  `gorm:"column:type;type:varchar(50);not null"`
	Title         string     `gorm:"column:title;type:varchar(200);not null"`
	Message       string     `gorm:"column:message;type:text;not null"`
	AppointmentID *uuid.UUID `gorm:"column:appointment_id;type:uuid;index"`

	IsRead bool       `gorm:"column:is_read;default:false;index"`
	ReadAt *time.Time `gorm:"column:read_at"`
}

func (Notification) TableName() string {
	return "comms.notifications"
}

// Event is what booking code hands to the dispatcher; one event fans out
// to one persisted Notification per recipient.
type Event struct {
	Type          EventType
	AppointmentID *uuid.UUID
	RecipientIDs  []uuid.UUID
	Title         string
	Message       string
}
