package v1

import (
	"time"

	"github.com/bookflow/bookflow/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	log                 *zap.Logger
}

func NewNotificationHandler(notificationService *service.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, log: log}
}

type notificationResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	AppointmentID *string   `json:"appointment_id,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *NotificationHandler) List(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit := parseQueryInt(c, "limit", 50)
	offset := 0
	if v := parseQueryInt(c, "offset", 0); v > 0 {
		offset = v
	}

	items, err := h.notificationService.ListForUser(c.Request.Context(), claims.UserID, unreadOnly, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		resp := notificationResponse{
			ID:        n.ID.String(),
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		}
		if n.AppointmentID != nil {
			s := n.AppointmentID.String()
			resp.AppointmentID = &s
		}
		out = append(out, resp)
	}

	respondOK(c, gin.H{"notifications": out})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), id, claims.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"id": id.String(), "is_read": true})
}
