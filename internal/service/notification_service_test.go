package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bookflow/bookflow/internal/domain/notification"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Collectors register against the global prometheus registry, so the
// test binary gets exactly one.
var testCollector = metrics.NewCollector("bookflow_test")

type memNotificationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*notification.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{items: make(map[uuid.UUID]*notification.Notification)}
}

func (r *memNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	cp := *n
	r.items[n.ID] = &cp
	return nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*notification.Notification
	for _, n := range r.items {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotificationNotFound
	}
	n.IsRead = true
	now := time.Now()
	n.ReadAt = &now
	return nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func TestNotificationFanOut(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewNotificationService(repo, zap.NewNop(), testCollector)

	client, provider := uuid.New(), uuid.New()
	apptID := uuid.New()

	svc.Dispatch(notification.Event{
		Type:          notification.EventAppointmentConfirmed,
		AppointmentID: &apptID,
		RecipientIDs:  []uuid.UUID{client, provider},
		Title:         "Appointment confirmed",
		Message:       "See you soon.",
	})

	// Shutdown drains the queue before returning.
	svc.Shutdown()

	assert.Equal(t, 2, repo.count())

	for _, userID := range []uuid.UUID{client, provider} {
		items, err := repo.ListByUser(context.Background(), userID, false, 10, 0)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, notification.EventAppointmentConfirmed, items[0].Type)
		assert.False(t, items[0].IsRead)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewNotificationService(repo, zap.NewNop(), testCollector)
	defer svc.Shutdown()

	userID := uuid.New()
	n := &notification.Notification{
		UserID:  userID,
		Type:    notification.EventSlotClaimed,
		Title:   "Appointment requested",
		Message: "A slot was claimed.",
	}
	require.NoError(t, repo.Create(context.Background(), n))

	t.Run("owner can mark read", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(context.Background(), n.ID, userID))

		unread, err := svc.ListForUser(context.Background(), userID, true, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, unread)
	})

	t.Run("non-owner gets not found", func(t *testing.T) {
		err := svc.MarkRead(context.Background(), n.ID, uuid.New())
		assert.ErrorIs(t, err, notification.ErrNotificationNotFound)
	})
}
