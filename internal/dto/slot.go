package dto

// CreateSlotRequest places a subject at a coordinate by hand.
type CreateSlotRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	Weekday   string `json:"weekday" validate:"required"`
	Period    int    `json:"period" validate:"required,min=1,max=9"`
}

// MoveRequest relocates an existing record to another coordinate.
type MoveRequest struct {
	Weekday string `json:"weekday" validate:"required"`
	Period  int    `json:"period" validate:"required,min=1,max=9"`
}

// CreateAvailabilityRequest declares a teacher available at a coordinate.
type CreateAvailabilityRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
	Weekday   string `json:"weekday" validate:"required"`
	Period    int    `json:"period" validate:"required,min=1,max=9"`
}
