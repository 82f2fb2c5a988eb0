package service

import (
	"context"
	"time"

	"github.com/bookflow/bookflow/internal/domain/notification"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher receives booking events fire-and-forget: a failed or dropped
// dispatch must never roll back the state change that produced it.
type Dispatcher interface {
	Dispatch(event notification.Event)
}

const eventBufferSize = 10_000

// NotificationService decouples notification fan-out from booking
// transitions through a buffered in-process queue: the caller enqueues
// and moves on, a single worker persists inbox rows.
type NotificationService struct {
	repo      notification.Repository
	log       *zap.Logger
	collector *metrics.Collector
	events    chan notification.Event
	done      chan struct{}
}

func NewNotificationService(repo notification.Repository, log *zap.Logger, collector *metrics.Collector) *NotificationService {
	svc := &NotificationService{
		repo:      repo,
		log:       log,
		collector: collector,
		events:    make(chan notification.Event, eventBufferSize),
		done:      make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// Dispatch enqueues an event for async fan-out. If the buffer is full the
// event is dropped and a warning is emitted.
func (s *NotificationService) Dispatch(event notification.Event) {
	select {
	case s.events <- event:
	default:
		s.collector.NotificationsDropped.Inc()
		s.log.Warn("notification buffer full, dropping event",
			zap.String("type", string(event.Type)),
		)
	}
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) Shutdown() {
	close(s.events)
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("notification service shutdown timed out; some events may be lost")
	}
}

func (s *NotificationService) worker() {
	defer close(s.done)
	for event := range s.events {
		for _, recipient := range event.RecipientIDs {
			n := &notification.Notification{
				UserID:        recipient,
				Type:          event.Type,
				Title:         event.Title,
				Message:       event.Message,
				AppointmentID: event.AppointmentID,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.repo.Create(ctx, n); err != nil {
				s.log.Error("failed to persist notification",
					zap.String("type", string(event.Type)),
					zap.Error(err),
				)
			} else {
				s.collector.NotificationsSent.Inc()
			}
			cancel()
		}
	}
}
