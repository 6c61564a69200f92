package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Weekday is one of the five teaching days.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
)

const (
	FirstPeriod = 1
	LastPeriod  = 9
	// SlotsPerWeek is the size of the weekly grid.
	SlotsPerWeek = 5 * LastPeriod
)

// Weekdays lists the teaching days in scheduling order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayAliases = map[string]Weekday{
	"MON": Monday, "MONDAY": Monday, "SEGUNDA": Monday,
	"TUE": Tuesday, "TUESDAY": Tuesday, "TERCA": Tuesday, "TERÇA": Tuesday,
	"WED": Wednesday, "WEDNESDAY": Wednesday, "QUARTA": Wednesday,
	"THU": Thursday, "THURSDAY": Thursday, "QUINTA": Thursday,
	"FRI": Friday, "FRIDAY": Friday, "SEXTA": Friday,
}

// ParseWeekday accepts the canonical codes plus English and Portuguese day names.
func ParseWeekday(raw string) (Weekday, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.TrimSuffix(key, "-FEIRA")
	if day, ok := weekdayAliases[key]; ok {
		return day, nil
	}
	return "", fmt.Errorf("unknown weekday %q", raw)
}

// Index returns the position of w in Weekdays, or -1.
func (w Weekday) Index() int {
	for i, day := range Weekdays {
		if day == w {
			return i
		}
	}
	return -1
}

func (w Weekday) Valid() bool {
	return w.Index() >= 0
}

// ValidPeriod reports whether p is inside the daily grid.
func ValidPeriod(p int) bool {
	return p >= FirstPeriod && p <= LastPeriod
}

// Coordinate is a (weekday, period) cell of the weekly grid.
type Coordinate struct {
	Weekday Weekday `db:"weekday" json:"weekday" yaml:"weekday"`
	Period  int     `db:"period" json:"period" yaml:"period"`
}

func (c Coordinate) Valid() bool {
	return c.Weekday.Valid() && ValidPeriod(c.Period)
}

func (c Coordinate) String() string {
	return string(c.Weekday) + "-" + strconv.Itoa(c.Period)
}

// Before orders coordinates by weekday then period.
func (c Coordinate) Before(other Coordinate) bool {
	if c.Weekday != other.Weekday {
		return c.Weekday.Index() < other.Weekday.Index()
	}
	return c.Period < other.Period
}
