package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bookflow/bookflow/internal/config"
	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/bookflow/bookflow/internal/domain/notification"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AvailabilityService struct {
	repo       availability.Repository
	dispatcher Dispatcher
	clock      Clock
	cfg        config.BookingConfig
	collector  *metrics.Collector
	log        *zap.Logger
}

func NewAvailabilityService(
	repo availability.Repository,
	dispatcher Dispatcher,
	clock Clock,
	cfg config.BookingConfig,
	collector *metrics.Collector,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		collector:  collector,
		log:        log,
	}
}

type PublishResult struct {
	Block *availability.AvailabilityBlock
	Slots []*availability.Slot
}

// Publish validates the range, tiles it into free slots, and persists
// block + slots as one unit. Overlap with any of the provider's active
// blocks is rejected, which is what keeps a provider's held/booked slots
// pairwise disjoint without any per-booking overlap checks.
func (s *AvailabilityService) Publish(ctx context.Context, providerID uuid.UUID, start, end time.Time, slotDurationMins int) (*PublishResult, error) {
	rng, err := availability.NewTimeRange(start, end)
	if err != nil {
		return nil, err
	}
	if slotDurationMins > s.cfg.MaxSlotDurationMins {
		return nil, availability.ErrInvalidDuration
	}

	slotRanges, err := availability.GenerateSlotRanges(rng, slotDurationMins)
	if err != nil {
		return nil, err
	}

	overlap, err := s.repo.HasOverlap(ctx, providerID, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("checking overlap: %w", err)
	}
	if overlap {
		return nil, availability.ErrOverlappingAvailability
	}

	block := &availability.AvailabilityBlock{
		ProviderID:       providerID,
		Range:            rng,
		SlotDurationMins: slotDurationMins,
		Status:           availability.BlockActive,
	}

	slots := make([]*availability.Slot, 0, len(slotRanges))
	for _, sr := range slotRanges {
		slots = append(slots, &availability.Slot{
			ProviderID: providerID,
			Range:      sr,
			State:      availability.SlotFree,
		})
	}

	if err := s.repo.CreateBlock(ctx, block, slots); err != nil {
		s.log.Error("failed to persist availability block", zap.Error(err))
		return nil, fmt.Errorf("persisting availability block: %w", err)
	}

	s.collector.BlocksPublished.Inc()
	s.collector.SlotsGenerated.Add(float64(len(slots)))

	s.log.Info("availability published",
		zap.String("provider_id", providerID.String()),
		zap.String("block_id", block.ID.String()),
		zap.Int("slots", len(slots)),
	)

	return &PublishResult{Block: block, Slots: slots}, nil
}

// Withdraw retires a block that has no held or booked slots. Its free
// slots are cancelled, permanently removing that time from circulation.
func (s *AvailabilityService) Withdraw(ctx context.Context, blockID, callerID uuid.UUID, callerRole domain.Role) error {
	block, err := s.repo.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}

	if callerRole != domain.RoleAdmin && block.ProviderID != callerID {
		return ErrForbidden
	}

	if err := s.repo.WithdrawBlock(ctx, blockID); err != nil {
		return err
	}

	s.dispatcher.Dispatch(notification.Event{
		Type:         notification.EventAvailabilityWithdrawn,
		RecipientIDs: []uuid.UUID{block.ProviderID},
		Title:        "Availability withdrawn",
		Message:      fmt.Sprintf("Your availability from %s to %s was withdrawn.", block.Range.Start.Format(time.RFC3339), block.Range.End.Format(time.RFC3339)),
	})

	return nil
}

// ListFreeSlots is a restartable read: free slots for the provider in the
// window, ascending. Nil bounds fall back to [now, now+ListWindowDays).
func (s *AvailabilityService) ListFreeSlots(ctx context.Context, providerID uuid.UUID, from, to *time.Time) ([]*availability.Slot, error) {
	windowStart := s.clock.Now()
	if from != nil {
		windowStart = *from
	}
	windowEnd := windowStart.AddDate(0, 0, s.cfg.ListWindowDays)
	if to != nil {
		windowEnd = *to
	}
	if !windowStart.Before(windowEnd) {
		return nil, availability.ErrInvalidRange
	}

	return s.repo.ListFreeSlots(ctx, providerID, windowStart, windowEnd)
}
