package models

import "time"

// Teacher is an instructor who declares weekly availability.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures list options for teachers.
type TeacherFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherDetail is a teacher with the records it owns.
type TeacherDetail struct {
	Teacher
	Availability []Availability `json:"availability"`
	Subjects     []Subject      `json:"subjects"`
}
