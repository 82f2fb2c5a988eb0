package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookflow/bookflow/internal/domain/appointment"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// expireBatchSize bounds how many holds a single sweep pass touches.
const expireBatchSize = 200

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("fetching appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	query := r.db.WithContext(ctx).Model(&appointment.Appointment{})

	if q.ClientID != nil {
		query = query.Where("client_id = ?", *q.ClientID)
	}
	if q.ProviderID != nil {
		query = query.Where("provider_id = ?", *q.ProviderID)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.DateFrom != nil {
		query = query.Where("end_time >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		query = query.Where("start_time <= ?", *q.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	var appts []*appointment.Appointment
	err := query.
		Order("start_time ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &appointment.PagedAppointments{
		Appointments: appts,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages,
	}, nil
}

// ClaimSlot performs the free → held transition and the appointment insert
// as one transaction. The conditional UPDATE on the slot's state column is
// the arbiter: under concurrent claims exactly one caller sees a non-zero
// row count, everyone else gets ErrSlotUnavailable.
func (r *AppointmentRepository) ClaimSlot(ctx context.Context, a *appointment.Appointment, holdExpiresAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&availability.Slot{}).
			Where("id = ? AND state = ?", a.SlotID, availability.SlotFree).
			Updates(map[string]any{
				"state":           availability.SlotHeld,
				"hold_expires_at": holdExpiresAt,
			})
		if res.Error != nil {
			return fmt.Errorf("holding slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return availability.ErrSlotUnavailable
		}

		if err := tx.Create(a).Error; err != nil {
			// The partial unique index on slot_id (non-cancelled rows) is the
			// backstop behind the state guard above.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return availability.ErrSlotUnavailable
			}
			return fmt.Errorf("creating appointment: %w", err)
		}
		return nil
	})
}

func (r *AppointmentRepository) CommitTransition(ctx context.Context, t *appointment.Transition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slotUpdates := map[string]any{"state": t.SlotTo}
		if t.SlotTo != availability.SlotHeld {
			slotUpdates["hold_expires_at"] = nil
		}

		res := tx.Model(&availability.Slot{}).
			Where("id = ? AND state = ?", t.SlotID, t.SlotFrom).
			Updates(slotUpdates)
		if res.Error != nil {
			return fmt.Errorf("updating slot state: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return appointment.ErrInvalidStatusTransition
		}

		apptUpdates := map[string]any{"status": t.ApptTo}
		switch t.ApptTo {
		case appointment.StatusCancelled:
			apptUpdates["cancelled_at"] = t.At
			apptUpdates["cancellation_reason"] = t.Reason
			apptUpdates["cancelled_by"] = t.Actor
		case appointment.StatusCompleted:
			apptUpdates["completed_at"] = t.At
		}

		res = tx.Model(&appointment.Appointment{}).
			Where("id = ? AND status = ?", t.AppointmentID, t.ApptFrom).
			Updates(apptUpdates)
		if res.Error != nil {
			return fmt.Errorf("updating appointment status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Rolls back the slot leg too: slot and appointment never diverge.
			return appointment.ErrInvalidStatusTransition
		}
		return nil
	})
}

func (r *AppointmentRepository) ExpireHolds(ctx context.Context, now time.Time) (int, error) {
	var slotIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&availability.Slot{}).
		Where("state = ? AND hold_expires_at <= ?", availability.SlotHeld, now).
		Limit(expireBatchSize).
		Pluck("id", &slotIDs).Error
	if err != nil {
		return 0, fmt.Errorf("finding expired holds: %w", err)
	}

	expired := 0
	for _, slotID := range slotIDs {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Re-check under the guard: a confirm that won the race flips the
			// state to booked and this update matches nothing.
			res := tx.Model(&availability.Slot{}).
				Where("id = ? AND state = ? AND hold_expires_at <= ?",
					slotID, availability.SlotHeld, now).
				Updates(map[string]any{
					"state":           availability.SlotFree,
					"hold_expires_at": nil,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			err := tx.Model(&appointment.Appointment{}).
				Where("slot_id = ? AND status = ?", slotID, appointment.StatusPending).
				Updates(map[string]any{
					"status":              appointment.StatusCancelled,
					"cancelled_at":        now,
					"cancellation_reason": appointment.ReasonHoldExpired,
				}).Error
			if err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, fmt.Errorf("expiring hold on slot %s: %w", slotID, err)
		}
	}
	return expired, nil
}

func (r *AppointmentRepository) CreateRating(ctx context.Context, rating *appointment.Rating) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&appointment.Rating{}).
			Where("appointment_id = ?", rating.AppointmentID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("checking existing rating: %w", err)
		}
		if count > 0 {
			return appointment.ErrAlreadyRated
		}

		if err := tx.Create(rating).Error; err != nil {
			// The unique index on appointment_id catches the race the
			// count check cannot.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appointment.ErrAlreadyRated
			}
			return fmt.Errorf("creating rating: %w", err)
		}
		return nil
	})
}
