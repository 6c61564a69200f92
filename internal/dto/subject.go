package dto

import "github.com/noah-isme/meu-horario-api/internal/models"

// CreateSubjectRequest is the payload for POST /subjects.
type CreateSubjectRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	WeeklySlots    int    `json:"weeklySlots" validate:"required,min=1,max=45"`
	TeacherID      string `json:"teacherId" validate:"required"`
	ClassSectionID string `json:"classSectionId" validate:"required"`
}

// UpdateSubjectRequest renames a subject or changes its weekly load.
type UpdateSubjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	WeeklySlots *int    `json:"weeklySlots" validate:"omitempty,min=1,max=45"`
}

// SubjectAllocationResponse pairs a written subject with its allocation outcome.
type SubjectAllocationResponse struct {
	Subject    models.Subject    `json:"subject"`
	Allocation *AllocationResult `json:"allocation,omitempty"`
}
