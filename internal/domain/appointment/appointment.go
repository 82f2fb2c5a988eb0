package appointment

import (
	"time"

	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/google/uuid"
)

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeLesson       AppointmentType = "lesson"
	TypeAssessment   AppointmentType = "assessment"
	TypeFollowUp     AppointmentType = "follow_up"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeLesson, TypeAssessment, TypeFollowUp:
		return true
	}
	return false
}

// State transition possibilities:
//
//	pending → confirmed → {completed | no_show}
//	pending → cancelled (client/provider action, or hold expiry)
//	confirmed → cancelled
//
// An appointment and its slot must never disagree about whether the time
// is occupied; every transition here commits together with the matching
// slot transition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

func (a *Appointment) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
		StatusCompleted: {},
		StatusCancelled: {},
		StatusNoShow:    {},
	}

	for _, s := range allowed[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// CancelReason distinguishes actor-driven cancellations from the
// automatic one performed when a hold deadline lapses.
const (
	ReasonHoldExpired = "hold_expired"
)

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// A slot carries at most one non-cancelled appointment. A plain unique
	// index would be wrong here: hold expiry cancels the appointment but
	// keeps the row as history, and the freed slot must accept a new claim.
	// The partial unique index in pkg/database enforces the real invariant.
	SlotID     uuid.UUID `gorm:"column:slot_id;type:uuid;not null;index"`
	ClientID   uuid.UUID `gorm:"column:client_id;type:uuid;not null;index"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`

	Type   AppointmentType `gorm:"column:type;type:varchar(50);not null"`
	Status Status          `gorm:"column:status;type:varchar(30);not null;default:'pending';index"`

	StartTime time.Time `gorm:"column:start_time;not null;index"`
	EndTime   time.Time `gorm:"column:end_time;not null"`

	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`

	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (Appointment) TableName() string {
	return "booking.appointments"
}

// Rating is recorded once per completed appointment.
type Rating struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	AppointmentID uuid.UUID `gorm:"column:appointment_id;type:uuid;not null;uniqueIndex"`
	RatedBy       uuid.UUID `gorm:"column:rated_by;type:uuid;not null"`
	Score         int       `gorm:"column:score;not null"`
	Comment       string    `gorm:"column:comment;type:text"`
}

func (Rating) TableName() string {
	return "booking.appointment_ratings"
}

// Transition describes one coupled appointment+slot state change. The
// store applies both legs as conditional updates inside a single
// transaction; zero rows affected on either leg aborts the whole unit.
type Transition struct {
	AppointmentID uuid.UUID
	SlotID        uuid.UUID

	ApptFrom Status
	ApptTo   Status
	SlotFrom availability.SlotState
	SlotTo   availability.SlotState

	Reason string
	Actor  *uuid.UUID
	At     time.Time
}

type ClaimCommand struct {
	SlotID   uuid.UUID
	ClientID uuid.UUID
	Type     AppointmentType
}

type ListQuery struct {
	ClientID   *uuid.UUID
	ProviderID *uuid.UUID
	Status     *Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
