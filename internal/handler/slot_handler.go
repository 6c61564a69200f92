package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/pkg/response"
)

type slotService interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error)
	Get(ctx context.Context, id string) (*models.Slot, error)
	Create(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error)
	Update(ctx context.Context, id string, req dto.MoveRequest) (*models.Slot, error)
	Delete(ctx context.Context, id string) error
}

// SlotHandler exposes manual edits of committed slots.
type SlotHandler struct {
	slots slotService
}

func NewSlotHandler(slots slotService) *SlotHandler {
	return &SlotHandler{slots: slots}
}

// List godoc
// @Summary List slots
// @Tags Slots
// @Produce json
// @Param subjectId query string false "Subject ID"
// @Param teacherId query string false "Teacher ID"
// @Param classSectionId query string false "Class section ID"
// @Param weekday query string false "Weekday (MON..FRI)"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	slots, err := h.slots.List(c.Request.Context(), models.SlotFilter{
		SubjectID:      c.Query("subjectId"),
		TeacherID:      c.Query("teacherId"),
		ClassSectionID: c.Query("classSectionId"),
		Weekday:        models.Weekday(c.Query("weekday")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	slot, err := h.slots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Commit a slot manually
// @Description Rejected with 409 and details.dimension TEACHER, CLASS_SECTION or WEEKLY_SLOTS on conflict.
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body dto.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	var req dto.CreateSlotRequest
	if !bindJSON(c, &req, "slot") {
		return
	}
	slot, err := h.slots.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Move a slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body dto.MoveRequest true "Target coordinate"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots/{id} [put]
func (h *SlotHandler) Update(c *gin.Context) {
	var req dto.MoveRequest
	if !bindJSON(c, &req, "slot") {
		return
	}
	slot, err := h.slots.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Delete slot
// @Tags Slots
// @Param id path string true "Slot ID"
// @Success 204
// @Router /slots/{id} [delete]
func (h *SlotHandler) Delete(c *gin.Context) {
	if err := h.slots.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
