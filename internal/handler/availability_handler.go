package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/pkg/response"
)

type availabilityService interface {
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error)
	Create(ctx context.Context, req dto.CreateAvailabilityRequest) (*models.Availability, error)
	Update(ctx context.Context, id string, req dto.MoveRequest) (*models.Availability, error)
	Delete(ctx context.Context, id string) error
}

// AvailabilityHandler exposes teacher availability declarations.
type AvailabilityHandler struct {
	availability availabilityService
}

func NewAvailabilityHandler(availability availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// List godoc
// @Summary List availability ordered by weekday and period
// @Tags Availability
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param weekday query string false "Weekday (MON..FRI)"
// @Success 200 {object} response.Envelope
// @Router /availabilities [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	h.list(c, models.AvailabilityFilter{
		TeacherID: c.Query("teacherId"),
		Weekday:   models.Weekday(c.Query("weekday")),
	})
}

// ListByTeacher godoc
// @Summary List a teacher's availability
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availabilities [get]
func (h *AvailabilityHandler) ListByTeacher(c *gin.Context) {
	h.list(c, models.AvailabilityFilter{TeacherID: c.Param("id")})
}

func (h *AvailabilityHandler) list(c *gin.Context, filter models.AvailabilityFilter) {
	items, err := h.availability.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Declare availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.CreateAvailabilityRequest true "Availability payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availabilities [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	var req dto.CreateAvailabilityRequest
	if !bindJSON(c, &req, "availability") {
		return
	}
	item, err := h.availability.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Move availability to another coordinate
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Availability ID"
// @Param payload body dto.MoveRequest true "Target coordinate"
// @Success 200 {object} response.Envelope
// @Router /availabilities/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req dto.MoveRequest
	if !bindJSON(c, &req, "availability") {
		return
	}
	item, err := h.availability.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete availability
// @Tags Availability
// @Param id path string true "Availability ID"
// @Success 204
// @Router /availabilities/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	if err := h.availability.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
