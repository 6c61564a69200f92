package models

import "time"

// Subject is a course taught by one teacher to one class section for
// WeeklySlots periods per week.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	WeeklySlots    int       `db:"weekly_slots" json:"weekly_slots"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	ClassSectionID string    `db:"class_section_id" json:"class_section_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures list options for subjects.
type SubjectFilter struct {
	Search         string
	TeacherID      string
	ClassSectionID string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// SubjectDetail is a subject with its owners and committed slots.
type SubjectDetail struct {
	Subject
	Teacher      *Teacher      `json:"teacher,omitempty"`
	ClassSection *ClassSection `json:"class_section,omitempty"`
	Slots        []Slot        `json:"slots"`
}
