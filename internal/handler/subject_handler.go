package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/middleware"
	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
	"github.com/noah-isme/meu-horario-api/pkg/response"
)

const partialAllocationWarning = "not every weekly slot could be placed; adjust the teacher's availability or edit the subject, then reallocate"

type subjectService interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.SubjectDetail, error)
	Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectAllocationResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*dto.SubjectAllocationResponse, error)
	Delete(ctx context.Context, id string) error
}

type allocator interface {
	Allocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error)
	Reallocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error)
}

// SubjectHandler exposes subject CRUD and the allocation triggers.
type SubjectHandler struct {
	subjects  subjectService
	allocator allocator
}

func NewSubjectHandler(subjects subjectService, allocator allocator) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, allocator: allocator}
}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param search query string false "Search by name"
// @Param teacherId query string false "Teacher ID"
// @Param classSectionId query string false "Class section ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	q := parseListQuery(c)
	subjects, pagination, err := h.subjects.List(c.Request.Context(), models.SubjectFilter{
		Search:         q.Search,
		TeacherID:      c.Query("teacherId"),
		ClassSectionID: c.Query("classSectionId"),
		Page:           q.Page,
		PageSize:       q.PageSize,
		SortBy:         q.SortBy,
		SortOrder:      q.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Get godoc
// @Summary Get subject with teacher, class section and slots
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.subjects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Create godoc
// @Summary Create subject and allocate its weekly slots
// @Tags Subjects
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if !bindJSON(c, &req, "subject") {
		return
	}
	resp, err := h.subjects.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if resp.Allocation != nil && resp.Allocation.Partial() {
		middleware.SetWarning(c, partialAllocationWarning)
	}
	response.Created(c, resp, middleware.ExtractMeta(c))
}

// Update godoc
// @Summary Update subject; a new weekly load reallocates its slots
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.UpdateSubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req dto.UpdateSubjectRequest
	if !bindJSON(c, &req, "subject") {
		return
	}
	resp, err := h.subjects.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if resp.Allocation != nil && resp.Allocation.Partial() {
		middleware.SetWarning(c, partialAllocationWarning)
	}
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Delete godoc
// @Summary Delete subject and its slots
// @Tags Subjects
// @Param id path string true "Subject ID"
// @Success 204
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	if err := h.subjects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Allocate godoc
// @Summary Allocate weekly slots for a subject
// @Description Returns 201 when slots were created, 200 with reason ALREADY_ALLOCATED when the subject already has slots.
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/allocate [post]
func (h *SubjectHandler) Allocate(c *gin.Context) {
	h.allocate(c, h.allocator.Allocate)
}

// Reallocate godoc
// @Summary Drop a subject's slots and allocate again
// @Tags Subjects
// @Produce json
// @Param id path string true "Subject ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/reallocate [post]
func (h *SubjectHandler) Reallocate(c *gin.Context) {
	h.allocate(c, h.allocator.Reallocate)
}

func (h *SubjectHandler) allocate(c *gin.Context, run func(context.Context, string) (*dto.AllocationResult, error)) {
	result, err := run(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	switch result.Reason {
	case dto.ReasonSubjectNotFound:
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "subject not found").WithDetail("reason", string(result.Reason)))
		return
	case dto.ReasonAlreadyAllocated:
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	if result.Partial() {
		middleware.SetWarning(c, partialAllocationWarning)
	}
	response.Created(c, result, middleware.ExtractMeta(c))
}
