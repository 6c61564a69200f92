package models

import "time"

// Availability declares that a teacher can teach at a coordinate.
type Availability struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Weekday   Weekday   `db:"weekday" json:"weekday"`
	Period    int       `db:"period" json:"period"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (a Availability) Coordinate() Coordinate {
	return Coordinate{Weekday: a.Weekday, Period: a.Period}
}

type AvailabilityFilter struct {
	TeacherID string
	Weekday   Weekday
}
