package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/appointment"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/bookflow/bookflow/internal/domain/notification"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService arbitrates slot conflicts. Every state change is pushed
// down to the store as a conditional update guarded by the current slot
// state; the in-memory checks here only produce friendlier errors on the
// fast path and never substitute for the store-level guard.
type BookingService struct {
	appts      appointment.Repository
	slots      availability.Repository
	dispatcher Dispatcher
	clock      Clock
	holdTTL    time.Duration
	collector  *metrics.Collector
	log        *zap.Logger
}

func NewBookingService(
	appts appointment.Repository,
	slots availability.Repository,
	dispatcher Dispatcher,
	clock Clock,
	holdTTL time.Duration,
	collector *metrics.Collector,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		appts:      appts,
		slots:      slots,
		dispatcher: dispatcher,
		clock:      clock,
		holdTTL:    holdTTL,
		collector:  collector,
		log:        log,
	}
}

// Claim places a hold on a free slot and creates the pending appointment
// as one atomic unit. Under concurrent claims on the same slot exactly
// one caller wins; the rest get ErrSlotUnavailable and must re-query
// availability — there is no retry-into-success and no silent no-op.
func (s *BookingService) Claim(ctx context.Context, cmd *appointment.ClaimCommand) (*appointment.Appointment, error) {
	if !cmd.Type.IsValid() {
		return nil, appointment.ErrInvalidAppointmentType
	}

	slot, err := s.slots.GetSlot(ctx, cmd.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.State != availability.SlotFree {
		s.collector.ClaimsTotal.WithLabelValues("conflict").Inc()
		return nil, availability.ErrSlotUnavailable
	}

	now := s.clock.Now()
	a := &appointment.Appointment{
		SlotID:     slot.ID,
		ClientID:   cmd.ClientID,
		ProviderID: slot.ProviderID,
		Type:       cmd.Type,
		Status:     appointment.StatusPending,
		StartTime:  slot.Range.Start,
		EndTime:    slot.Range.End,
	}

	if err := s.appts.ClaimSlot(ctx, a, now.Add(s.holdTTL)); err != nil {
		if errors.Is(err, availability.ErrSlotUnavailable) {
			s.collector.ClaimsTotal.WithLabelValues("conflict").Inc()
		} else {
			s.collector.ClaimsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	s.collector.ClaimsTotal.WithLabelValues("won").Inc()
	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusPending)).Inc()

	s.log.Info("slot claimed",
		zap.String("slot_id", slot.ID.String()),
		zap.String("appointment_id", a.ID.String()),
		zap.String("client_id", cmd.ClientID.String()),
	)

	s.notifyParties(a, notification.EventSlotClaimed, "Appointment requested",
		fmt.Sprintf("An appointment was requested for %s.", a.StartTime.Format(time.RFC3339)))

	return a, nil
}

// Confirm finalizes a held slot into a booking. If the hold deadline has
// already lapsed the expiry is finalized instead (same conditional-update
// discipline as the sweep) and the confirm fails.
func (s *BookingService) Confirm(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	a, err := s.authorizedAppointment(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.GetSlot(ctx, a.SlotID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if slot.HoldExpired(now) {
		// Lazy expiry: finalize the reversion rather than confirming a
		// hold that the sweep would have already released.
		err := s.appts.CommitTransition(ctx, &appointment.Transition{
			AppointmentID: a.ID,
			SlotID:        a.SlotID,
			ApptFrom:      appointment.StatusPending,
			ApptTo:        appointment.StatusCancelled,
			SlotFrom:      availability.SlotHeld,
			SlotTo:        availability.SlotFree,
			Reason:        appointment.ReasonHoldExpired,
			At:            now,
		})
		if err != nil && !errors.Is(err, appointment.ErrInvalidStatusTransition) {
			return nil, err
		}
		return nil, appointment.ErrInvalidStatusTransition
	}

	if a.Status != appointment.StatusPending || slot.State != availability.SlotHeld {
		return nil, appointment.ErrInvalidStatusTransition
	}

	t := &appointment.Transition{
		AppointmentID: a.ID,
		SlotID:        a.SlotID,
		ApptFrom:      appointment.StatusPending,
		ApptTo:        appointment.StatusConfirmed,
		SlotFrom:      availability.SlotHeld,
		SlotTo:        availability.SlotBooked,
		At:            now,
	}
	if err := s.appts.CommitTransition(ctx, t); err != nil {
		return nil, err
	}
	a.Status = appointment.StatusConfirmed
	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusConfirmed)).Inc()

	s.notifyParties(a, notification.EventAppointmentConfirmed, "Appointment confirmed",
		fmt.Sprintf("Your appointment for %s has been confirmed.", a.StartTime.Format(time.RFC3339)))

	return a, nil
}

// Cancel retires the slot's time permanently: a cancelled slot never
// returns to free, so a window the provider may have intended to close is
// never silently reopened. Republishing is the explicit way back.
func (s *BookingService) Cancel(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role, reason string) (*appointment.Appointment, error) {
	a, err := s.authorizedAppointment(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	if !a.CanTransitionTo(appointment.StatusCancelled) {
		return nil, appointment.ErrInvalidStatusTransition
	}

	t := &appointment.Transition{
		AppointmentID: a.ID,
		SlotID:        a.SlotID,
		ApptFrom:      a.Status,
		ApptTo:        appointment.StatusCancelled,
		SlotFrom:      slotStateFor(a.Status),
		SlotTo:        availability.SlotCancelled,
		Reason:        reason,
		Actor:         &callerID,
		At:            s.clock.Now(),
	}
	if err := s.appts.CommitTransition(ctx, t); err != nil {
		return nil, err
	}
	a.Status = appointment.StatusCancelled
	a.CancellationReason = reason
	a.CancelledBy = &callerID
	s.collector.AppointmentsTotal.WithLabelValues(string(appointment.StatusCancelled)).Inc()

	s.notifyParties(a, notification.EventAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("The appointment for %s has been cancelled.", a.StartTime.Format(time.RFC3339)))

	return a, nil
}

func (s *BookingService) Complete(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	return s.finalize(ctx, id, callerID, callerRole,
		appointment.StatusCompleted, availability.SlotCompleted,
		notification.EventAppointmentCompleted, "Appointment completed",
		"Your appointment has been completed. Please take a moment to rate your experience.")
}

func (s *BookingService) MarkNoShow(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	return s.finalize(ctx, id, callerID, callerRole,
		appointment.StatusNoShow, availability.SlotNoShow,
		notification.EventAppointmentNoShow, "Appointment marked as no-show",
		"The appointment was marked as a no-show.")
}

func (s *BookingService) finalize(
	ctx context.Context,
	id, callerID uuid.UUID,
	callerRole domain.Role,
	apptTo appointment.Status,
	slotTo availability.SlotState,
	event notification.EventType,
	title, message string,
) (*appointment.Appointment, error) {
	a, err := s.authorizedAppointment(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	if a.Status != appointment.StatusConfirmed {
		return nil, appointment.ErrInvalidStatusTransition
	}

	t := &appointment.Transition{
		AppointmentID: a.ID,
		SlotID:        a.SlotID,
		ApptFrom:      appointment.StatusConfirmed,
		ApptTo:        apptTo,
		SlotFrom:      availability.SlotBooked,
		SlotTo:        slotTo,
		At:            s.clock.Now(),
	}
	if err := s.appts.CommitTransition(ctx, t); err != nil {
		return nil, err
	}
	a.Status = apptTo
	s.collector.AppointmentsTotal.WithLabelValues(string(apptTo)).Inc()

	s.notifyParties(a, event, title, message)
	return a, nil
}

// Rate records the single allowed rating for a completed appointment.
func (s *BookingService) Rate(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role, score int, comment string) error {
	if score < 1 || score > 5 {
		return appointment.ErrInvalidScore
	}

	a, err := s.authorizedAppointment(ctx, id, callerID, callerRole)
	if err != nil {
		return err
	}
	if a.Status != appointment.StatusCompleted {
		return appointment.ErrNotCompleted
	}

	r := &appointment.Rating{
		AppointmentID: a.ID,
		RatedBy:       callerID,
		Score:         score,
		Comment:       comment,
	}
	if err := s.appts.CreateRating(ctx, r); err != nil {
		return err
	}

	s.dispatcher.Dispatch(notification.Event{
		Type:          notification.EventAppointmentRated,
		AppointmentID: &a.ID,
		RecipientIDs:  []uuid.UUID{otherParty(a, callerID)},
		Title:         "New appointment rating",
		Message:       fmt.Sprintf("Your appointment received a rating of %d/5.", score),
	})

	return nil
}

func (s *BookingService) GetAppointment(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	return s.authorizedAppointment(ctx, id, callerID, callerRole)
}

// ListAppointments scopes the query to the caller: clients see their own
// bookings, providers their own schedule, admins whatever they filter on.
func (s *BookingService) ListAppointments(ctx context.Context, q *appointment.ListQuery, callerID uuid.UUID, callerRole domain.Role) (*appointment.PagedAppointments, error) {
	switch callerRole {
	case domain.RoleClient:
		q.ClientID = &callerID
	case domain.RoleProvider:
		q.ProviderID = &callerID
	}

	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.appts.List(ctx, q)
}

func (s *BookingService) authorizedAppointment(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleAdmin && a.ClientID != callerID && a.ProviderID != callerID {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *BookingService) notifyParties(a *appointment.Appointment, event notification.EventType, title, message string) {
	s.dispatcher.Dispatch(notification.Event{
		Type:          event,
		AppointmentID: &a.ID,
		RecipientIDs:  []uuid.UUID{a.ClientID, a.ProviderID},
		Title:         title,
		Message:       message,
	})
}

// slotStateFor maps a live appointment status to the slot state it must
// be paired with; the store's conditional updates verify the pairing.
func slotStateFor(st appointment.Status) availability.SlotState {
	if st == appointment.StatusPending {
		return availability.SlotHeld
	}
	return availability.SlotBooked
}

func otherParty(a *appointment.Appointment, callerID uuid.UUID) uuid.UUID {
	if a.ClientID == callerID {
		return a.ProviderID
	}
	return a.ClientID
}
