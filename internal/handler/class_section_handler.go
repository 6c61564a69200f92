package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/internal/service"
	"github.com/noah-isme/meu-horario-api/pkg/response"
)

type classSectionService interface {
	List(ctx context.Context, filter models.ClassSectionFilter) ([]models.ClassSection, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ClassSection, error)
	Create(ctx context.Context, req service.ClassSectionRequest) (*models.ClassSection, error)
	Update(ctx context.Context, id string, req service.ClassSectionRequest) (*models.ClassSection, error)
	Delete(ctx context.Context, id string) error
}

// ClassSectionHandler exposes class section CRUD.
type ClassSectionHandler struct {
	sections classSectionService
}

func NewClassSectionHandler(sections classSectionService) *ClassSectionHandler {
	return &ClassSectionHandler{sections: sections}
}

// List godoc
// @Summary List class sections
// @Tags Class Sections
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /class-sections [get]
func (h *ClassSectionHandler) List(c *gin.Context) {
	q := parseListQuery(c)
	sections, pagination, err := h.sections.List(c.Request.Context(), models.ClassSectionFilter{
		Search:    q.Search,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, pagination)
}

// Get godoc
// @Summary Get class section
// @Tags Class Sections
// @Produce json
// @Param id path string true "Class section ID"
// @Success 200 {object} response.Envelope
// @Router /class-sections/{id} [get]
func (h *ClassSectionHandler) Get(c *gin.Context) {
	section, err := h.sections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Create godoc
// @Summary Create class section
// @Tags Class Sections
// @Accept json
// @Produce json
// @Param payload body service.ClassSectionRequest true "Class section payload"
// @Success 201 {object} response.Envelope
// @Router /class-sections [post]
func (h *ClassSectionHandler) Create(c *gin.Context) {
	var req service.ClassSectionRequest
	if !bindJSON(c, &req, "class section") {
		return
	}
	section, err := h.sections.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// Update godoc
// @Summary Rename class section
// @Tags Class Sections
// @Accept json
// @Produce json
// @Param id path string true "Class section ID"
// @Param payload body service.ClassSectionRequest true "Class section payload"
// @Success 200 {object} response.Envelope
// @Router /class-sections/{id} [put]
func (h *ClassSectionHandler) Update(c *gin.Context) {
	var req service.ClassSectionRequest
	if !bindJSON(c, &req, "class section") {
		return
	}
	section, err := h.sections.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Delete godoc
// @Summary Delete class section with its subjects and slots
// @Tags Class Sections
// @Param id path string true "Class section ID"
// @Success 204
// @Router /class-sections/{id} [delete]
func (h *ClassSectionHandler) Delete(c *gin.Context) {
	if err := h.sections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
