package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// exclusionViolation is SQLSTATE 23P01, raised by the gist exclusion
// constraint on availability_blocks. gorm's TranslateError only covers
// 23505, so it has to be picked out by hand.
const exclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) CreateBlock(ctx context.Context, b *availability.AvailabilityBlock, slots []*availability.Slot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			// Two publishes can race past the service's overlap read; the
			// exclusion constraint makes the loser fail here, and the caller
			// must see the same error as a sequential overlap.
			if isExclusionViolation(err) {
				return availability.ErrOverlappingAvailability
			}
			return fmt.Errorf("creating availability block: %w", err)
		}
		for _, s := range slots {
			s.AvailabilityBlockID = b.ID
		}
		if len(slots) > 0 {
			if err := tx.Create(&slots).Error; err != nil {
				return fmt.Errorf("creating slots: %w", err)
			}
		}
		return nil
	})
}

func (r *AvailabilityRepository) GetBlock(ctx context.Context, id uuid.UUID) (*availability.AvailabilityBlock, error) {
	var b availability.AvailabilityBlock
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, availability.ErrBlockNotFound
		}
		return nil, fmt.Errorf("fetching availability block: %w", err)
	}
	return &b, nil
}

func (r *AvailabilityRepository) HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&availability.AvailabilityBlock{}).
		Where("provider_id = ? AND status = ? AND start_time < ? AND end_time > ?",
			providerID, availability.BlockActive, end, start).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking availability overlap: %w", err)
	}
	return count > 0, nil
}

func (r *AvailabilityRepository) WithdrawBlock(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b availability.AvailabilityBlock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return availability.ErrBlockNotFound
			}
			return fmt.Errorf("locking availability block: %w", err)
		}
		if b.Status == availability.BlockWithdrawn {
			return availability.ErrBlockWithdrawn
		}

		var active int64
		err = tx.Model(&availability.Slot{}).
			Where("availability_block_id = ? AND state IN ?", id,
				[]availability.SlotState{availability.SlotHeld, availability.SlotBooked}).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("counting active slots: %w", err)
		}
		if active > 0 {
			return availability.ErrBlockHasActiveBookings
		}

		if err := tx.Model(&b).Update("status", availability.BlockWithdrawn).Error; err != nil {
			return fmt.Errorf("withdrawing block: %w", err)
		}

		err = tx.Model(&availability.Slot{}).
			Where("availability_block_id = ? AND state = ?", id, availability.SlotFree).
			Update("state", availability.SlotCancelled).Error
		if err != nil {
			return fmt.Errorf("cancelling free slots: %w", err)
		}
		return nil
	})
}

func (r *AvailabilityRepository) ListFreeSlots(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]*availability.Slot, error) {
	var slots []*availability.Slot
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND state = ? AND start_time < ? AND end_time > ?",
			providerID, availability.SlotFree, windowEnd, windowStart).
		Order("start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("listing free slots: %w", err)
	}
	return slots, nil
}

func (r *AvailabilityRepository) GetSlot(ctx context.Context, id uuid.UUID) (*availability.Slot, error) {
	var s availability.Slot
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, availability.ErrSlotNotFound
		}
		return nil, fmt.Errorf("fetching slot: %w", err)
	}
	return &s, nil
}
