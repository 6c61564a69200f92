package dto

import "github.com/noah-isme/meu-horario-api/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Scope    models.TimetableScope `json:"scope" validate:"required,oneof=class_section teacher"`
	TargetID string                `json:"targetId" validate:"required"`
	Format   models.ExportFormat   `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
