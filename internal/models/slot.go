package models

import "time"

// Slot is a committed weekly cell for a subject.
type Slot struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Weekday   Weekday   `db:"weekday" json:"weekday"`
	Period    int       `db:"period" json:"period"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s Slot) Coordinate() Coordinate {
	return Coordinate{Weekday: s.Weekday, Period: s.Period}
}

type SlotFilter struct {
	SubjectID      string
	TeacherID      string
	ClassSectionID string
	Weekday        Weekday
}

// SlotEntry is a slot joined with the names needed to render a timetable.
type SlotEntry struct {
	SlotID           string  `db:"slot_id" json:"slot_id"`
	Weekday          Weekday `db:"weekday" json:"weekday"`
	Period           int     `db:"period" json:"period"`
	SubjectID        string  `db:"subject_id" json:"subject_id"`
	SubjectName      string  `db:"subject_name" json:"subject_name"`
	TeacherID        string  `db:"teacher_id" json:"teacher_id"`
	TeacherName      string  `db:"teacher_name" json:"teacher_name"`
	ClassSectionID   string  `db:"class_section_id" json:"class_section_id"`
	ClassSectionName string  `db:"class_section_name" json:"class_section_name"`
}
