package models

// TimetableScope selects whose week a timetable shows.
type TimetableScope string

const (
	ScopeClassSection TimetableScope = "class_section"
	ScopeTeacher      TimetableScope = "teacher"
)

func (s TimetableScope) Valid() bool {
	return s == ScopeClassSection || s == ScopeTeacher
}

// Timetable is the 5x9 weekly grid for a class section or teacher.
type Timetable struct {
	Scope      TimetableScope `json:"scope"`
	TargetID   string         `json:"target_id"`
	TargetName string         `json:"target_name"`
	Days       []TimetableDay `json:"days"`
	Filled     int            `json:"filled"`
	Overlaps   int            `json:"overlaps"`
}

type TimetableDay struct {
	Weekday Weekday         `json:"weekday"`
	Periods []TimetableCell `json:"periods"`
}

// TimetableCell is one period. A class section can hold more than one entry
// in the same period when priority subjects of different teachers overlap.
type TimetableCell struct {
	Period  int         `json:"period"`
	Entries []SlotEntry `json:"entries"`
}
