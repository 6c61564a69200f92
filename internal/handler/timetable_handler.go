package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meu-horario-api/internal/middleware"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/pkg/response"
)

type timetableService interface {
	Get(ctx context.Context, scope models.TimetableScope, id string) (*models.Timetable, bool, error)
}

// TimetableHandler renders weekly grids.
type TimetableHandler struct {
	timetables timetableService
}

func NewTimetableHandler(timetables timetableService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables}
}

// ClassSection godoc
// @Summary Weekly timetable of a class section
// @Tags Timetables
// @Produce json
// @Param id path string true "Class section ID"
// @Success 200 {object} response.Envelope
// @Router /class-sections/{id}/timetable [get]
func (h *TimetableHandler) ClassSection(c *gin.Context) {
	h.render(c, models.ScopeClassSection)
}

// Teacher godoc
// @Summary Weekly timetable of a teacher
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) Teacher(c *gin.Context) {
	h.render(c, models.ScopeTeacher)
}

func (h *TimetableHandler) render(c *gin.Context, scope models.TimetableScope) {
	table, cached, err := h.timetables.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, table, nil, middleware.ExtractMeta(c))
}
