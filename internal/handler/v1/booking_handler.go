package v1

import (
	"context"
	"time"

	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/appointment"
	"github.com/bookflow/bookflow/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	bookingService *service.BookingService
	log            *zap.Logger
}

func NewBookingHandler(bookingService *service.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, log: log}
}

type claimSlotRequest struct {
	SlotID string `json:"slot_id" binding:"required,uuid"`
	Type   string `json:"type" binding:"required"`
}

type appointmentResponse struct {
	ID                 string     `json:"id"`
	SlotID             string     `json:"slot_id"`
	ClientID           string     `json:"client_id"`
	ProviderID         string     `json:"provider_id"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	CreatedAt          time.Time  `json:"created_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// Claim attempts to take a free slot. Exactly one of any set of
// concurrent claims on the same slot succeeds; losers receive 409 and
// should re-query availability rather than retry the same slot.
func (h *BookingHandler) Claim(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	var req claimSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slotID, _ := uuid.Parse(req.SlotID)

	a, err := h.bookingService.Claim(c.Request.Context(), &appointment.ClaimCommand{
		SlotID:   slotID,
		ClientID: claims.UserID,
		Type:     appointment.AppointmentType(req.Type),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, toAppointmentResponse(a))
}

func (h *BookingHandler) Get(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.bookingService.GetAppointment(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toAppointmentResponse(a))
}

func (h *BookingHandler) List(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	q := &appointment.ListQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "page_size", 20),
		DateFrom: parseQueryTime(c, "from"),
		DateTo:   parseQueryTime(c, "to"),
	}
	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		q.Status = &st
	}
	if raw := c.Query("provider_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			q.ProviderID = &id
		}
	}

	page, err := h.bookingService.ListAppointments(c.Request.Context(), q, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]appointmentResponse, 0, len(page.Appointments))
	for _, a := range page.Appointments {
		items = append(items, toAppointmentResponse(a))
	}

	respondOK(c, gin.H{
		"appointments": items,
		"total_count":  page.TotalCount,
		"page":         page.Page,
		"page_size":    page.PageSize,
		"total_pages":  page.TotalPages,
	})
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.bookingService.Confirm)
}

func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, h.bookingService.Complete)
}

func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.bookingService.MarkNoShow)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	a, err := h.bookingService.Cancel(c.Request.Context(), id, claims.UserID, claims.Role, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toAppointmentResponse(a))
}

type rateRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (h *BookingHandler) Rate(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req rateRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.bookingService.Rate(c.Request.Context(), id, claims.UserID, claims.Role, req.Score, req.Comment); err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"appointment_id": id.String(), "score": req.Score})
}

type transitionFunc func(ctx context.Context, id, callerID uuid.UUID, callerRole domain.Role) (*appointment.Appointment, error)

func (h *BookingHandler) transition(c *gin.Context, fn transitionFunc) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := fn(c.Request.Context(), id, claims.UserID, claims.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toAppointmentResponse(a))
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                 a.ID.String(),
		SlotID:             a.SlotID.String(),
		ClientID:           a.ClientID.String(),
		ProviderID:         a.ProviderID.String(),
		Type:               string(a.Type),
		Status:             string(a.Status),
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		CreatedAt:          a.CreatedAt,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
	}
}
