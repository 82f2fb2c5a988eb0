package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, error)

	// MarkRead flips is_read for a notification owned by userID; it
	// returns ErrNotificationNotFound if the row does not exist or belongs
	// to someone else.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}
