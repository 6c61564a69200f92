package dto

import "github.com/noah-isme/meu-horario-api/internal/models"

// AllocationReason explains why an allocation created no slots.
type AllocationReason string

const (
	ReasonAlreadyAllocated AllocationReason = "ALREADY_ALLOCATED"
	ReasonSubjectNotFound  AllocationReason = "SUBJECT_NOT_FOUND"
)

// AllocationResult reports how many weekly slots a subject received.
// A partial allocation is a normal outcome with Success=false and no Reason.
type AllocationResult struct {
	SubjectID string              `json:"subjectId"`
	Requested int                 `json:"requested"`
	Allocated int                 `json:"allocated"`
	Success   bool                `json:"success"`
	Reason    AllocationReason    `json:"reason,omitempty"`
	Priority  bool                `json:"priority"`
	Slots     []models.Coordinate `json:"slots"`
}

// Partial reports an allocation that ran but fell short.
func (r AllocationResult) Partial() bool {
	return r.Reason == "" && r.Allocated < r.Requested
}
