package v1

import (
	"time"

	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/internal/domain/availability"
	"github.com/bookflow/bookflow/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	availabilityService *service.AvailabilityService
	log                 *zap.Logger
}

func NewAvailabilityHandler(availabilityService *service.AvailabilityService, log *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService, log: log}
}

type publishAvailabilityRequest struct {
	StartTime        time.Time `json:"start_time" binding:"required"`
	EndTime          time.Time `json:"end_time" binding:"required"`
	SlotDurationMins int       `json:"slot_duration_minutes" binding:"required,min=1"`
}

type slotResponse struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	State     string     `json:"state"`
	HoldUntil *time.Time `json:"hold_until,omitempty"`
}

type publishAvailabilityResponse struct {
	BlockID          string         `json:"block_id"`
	ProviderID       string         `json:"provider_id"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	SlotDurationMins int            `json:"slot_duration_minutes"`
	Slots            []slotResponse `json:"slots"`
}

// Publish opens a provider's time range for booking. The range is tiled
// into fixed-duration slots; any remainder shorter than one slot is
// discarded rather than producing a short slot. Providers can only
// publish their own availability; admins can publish for anyone.
func (h *AvailabilityHandler) Publish(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	providerID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if claims.Role != domain.RoleAdmin && providerID != claims.UserID {
		respondServiceError(c, service.ErrForbidden)
		return
	}

	var req publishAvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.availabilityService.Publish(
		c.Request.Context(), providerID, req.StartTime, req.EndTime, req.SlotDurationMins)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, publishAvailabilityResponse{
		BlockID:          result.Block.ID.String(),
		ProviderID:       result.Block.ProviderID.String(),
		StartTime:        result.Block.Range.Start,
		EndTime:          result.Block.Range.End,
		SlotDurationMins: result.Block.SlotDurationMins,
		Slots:            toSlotResponses(result.Slots),
	})
}

func (h *AvailabilityHandler) Withdraw(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	blockID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.availabilityService.Withdraw(c.Request.Context(), blockID, claims.UserID, claims.Role); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"block_id": blockID.String(), "status": string(availability.BlockWithdrawn)})
}

// ListSlots returns a provider's free slots inside the query window,
// ordered by start time. This is the read clients race each other from;
// staleness is resolved at claim time, not here.
func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	providerID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	from := parseQueryTime(c, "from")
	to := parseQueryTime(c, "to")

	slots, err := h.availabilityService.ListFreeSlots(c.Request.Context(), providerID, from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"provider_id": providerID.String(),
		"slots":       toSlotResponses(slots),
	})
}

func toSlotResponses(slots []*availability.Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{
			ID:        s.ID.String(),
			StartTime: s.Range.Start,
			EndTime:   s.Range.End,
			State:     string(s.State),
			HoldUntil: s.HoldExpiresAt,
		})
	}
	return out
}
