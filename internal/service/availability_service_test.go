package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookflow/bookflow/internal/config"
	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/bookflow/bookflow/internal/domain/notification"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type availabilityFixture struct {
	store      *memStore
	clock      *fakeClock
	dispatcher *recordingDispatcher
	svc        *AvailabilityService

	providerID uuid.UUID
}

func newAvailabilityFixture(t *testing.T) *availabilityFixture {
	t.Helper()

	store := newMemStore()
	clock := newFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	dispatcher := &recordingDispatcher{}
	cfg := config.BookingConfig{
		HoldTTL:             testHoldTTL,
		HoldSweepInterval:   time.Minute,
		MaxSlotDurationMins: 480,
		ListWindowDays:      30,
	}

	return &availabilityFixture{
		store:      store,
		clock:      clock,
		dispatcher: dispatcher,
		svc:        NewAvailabilityService(store, dispatcher, clock, cfg, testCollector, zap.NewNop()),
		providerID: uuid.New(),
	}
}

func TestPublishTilesRangeIntoSlots(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	result, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(3*time.Hour), 30)
	require.NoError(t, err)

	assert.Equal(t, availability.BlockActive, result.Block.Status)
	require.Len(t, result.Slots, 6)
	for i, s := range result.Slots {
		assert.Equal(t, availability.SlotFree, s.State)
		assert.Equal(t, f.providerID, s.ProviderID)
		assert.Equal(t, start.Add(time.Duration(i)*30*time.Minute), s.Range.Start)
	}
}

func TestPublishRejectsInvalidInput(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	t.Run("inverted range", func(t *testing.T) {
		_, err := f.svc.Publish(context.Background(), f.providerID, start.Add(time.Hour), start, 30)
		assert.ErrorIs(t, err, availability.ErrInvalidRange)
	})

	t.Run("duration above cap", func(t *testing.T) {
		_, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(24*time.Hour), 481)
		assert.ErrorIs(t, err, availability.ErrInvalidDuration)
	})

	t.Run("duration longer than range", func(t *testing.T) {
		_, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(30*time.Minute), 45)
		assert.ErrorIs(t, err, availability.ErrInvalidDuration)
	})
}

func TestPublishRejectsOverlap(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	_, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(2*time.Hour), 60)
	require.NoError(t, err)

	_, err = f.svc.Publish(context.Background(), f.providerID, start.Add(time.Hour), start.Add(3*time.Hour), 60)
	assert.ErrorIs(t, err, availability.ErrOverlappingAvailability)

	// Adjacent ranges touch at an endpoint only and are fine.
	_, err = f.svc.Publish(context.Background(), f.providerID, start.Add(2*time.Hour), start.Add(4*time.Hour), 60)
	assert.NoError(t, err)

	// Another provider's identical range is unrelated.
	_, err = f.svc.Publish(context.Background(), uuid.New(), start, start.Add(2*time.Hour), 60)
	assert.NoError(t, err)
}

// Two publishes racing on overlapping ranges can both pass the overlap
// read; the store's commit-time guard must make exactly one lose, and the
// loser must see the same error as a sequential overlap, not a storage
// failure.
func TestConcurrentPublishOverlap(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	const publishers = 10

	var wg sync.WaitGroup
	errs := make([]error, publishers)

	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i) * 30 * time.Minute
			_, err := f.svc.Publish(context.Background(), f.providerID,
				start.Add(offset), start.Add(offset+2*time.Hour), 60)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, availability.ErrOverlappingAvailability):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.GreaterOrEqual(t, wins, 1)

	// Whatever won, the provider's active blocks are pairwise disjoint.
	f.store.mu.Lock()
	var ranges []availability.TimeRange
	for _, b := range f.store.blocks {
		if b.Status == availability.BlockActive {
			ranges = append(ranges, b.Range)
		}
	}
	f.store.mu.Unlock()

	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			assert.False(t, ranges[i].Overlaps(ranges[j]),
				"blocks %d and %d overlap", i, j)
		}
	}
}

func TestWithdrawCancelsFreeSlots(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	result, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(2*time.Hour), 60)
	require.NoError(t, err)

	require.NoError(t, f.svc.Withdraw(context.Background(), result.Block.ID, f.providerID, domain.RoleProvider))

	slots, err := f.svc.ListFreeSlots(context.Background(), f.providerID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, slots)

	assert.Len(t, f.dispatcher.byType(notification.EventAvailabilityWithdrawn), 1)

	// Withdrawn time stays retired; republishing the same range works.
	_, err = f.svc.Publish(context.Background(), f.providerID, start, start.Add(2*time.Hour), 60)
	assert.NoError(t, err)
}

func TestWithdrawBlockedByActiveBookings(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	result, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(2*time.Hour), 60)
	require.NoError(t, err)

	f.store.mu.Lock()
	f.store.slots[result.Slots[0].ID].State = availability.SlotHeld
	f.store.mu.Unlock()

	err = f.svc.Withdraw(context.Background(), result.Block.ID, f.providerID, domain.RoleProvider)
	assert.ErrorIs(t, err, availability.ErrBlockHasActiveBookings)

	// The remaining free slots are untouched.
	slots, err := f.svc.ListFreeSlots(context.Background(), f.providerID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestWithdrawAuthorization(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	result, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(time.Hour), 60)
	require.NoError(t, err)

	err = f.svc.Withdraw(context.Background(), result.Block.ID, uuid.New(), domain.RoleProvider)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admins may withdraw any block.
	assert.NoError(t, f.svc.Withdraw(context.Background(), result.Block.ID, uuid.New(), domain.RoleAdmin))
}

func TestListFreeSlotsWindow(t *testing.T) {
	f := newAvailabilityFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	_, err := f.svc.Publish(context.Background(), f.providerID, start, start.Add(2*time.Hour), 60)
	require.NoError(t, err)

	// Outside the default window.
	far := f.clock.Now().AddDate(0, 0, 60)
	_, err = f.svc.Publish(context.Background(), f.providerID, far, far.Add(time.Hour), 60)
	require.NoError(t, err)

	t.Run("default window", func(t *testing.T) {
		slots, err := f.svc.ListFreeSlots(context.Background(), f.providerID, nil, nil)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.True(t, slots[0].Range.Start.Before(slots[1].Range.Start))
	})

	t.Run("explicit window", func(t *testing.T) {
		from, to := far.Add(-time.Hour), far.Add(2*time.Hour)
		slots, err := f.svc.ListFreeSlots(context.Background(), f.providerID, &from, &to)
		require.NoError(t, err)
		assert.Len(t, slots, 1)
	})

	t.Run("inverted window rejected", func(t *testing.T) {
		from, to := far, far.Add(-time.Hour)
		_, err := f.svc.ListFreeSlots(context.Background(), f.providerID, &from, &to)
		assert.ErrorIs(t, err, availability.ErrInvalidRange)
	})
}
