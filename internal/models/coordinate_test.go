package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekdayAliases(t *testing.T) {
	cases := map[string]Weekday{
		"mon":          Monday,
		" Tuesday ":    Tuesday,
		"quarta":       Wednesday,
		"Quinta-feira": Thursday,
		"SEXTA":        Friday,
		"terça":        Tuesday,
	}
	for raw, want := range cases {
		got, err := ParseWeekday(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseWeekday("SAT")
	assert.Error(t, err)
}

func TestCoordinateOrderingAndValidity(t *testing.T) {
	mon9 := Coordinate{Weekday: Monday, Period: 9}
	tue1 := Coordinate{Weekday: Tuesday, Period: 1}

	assert.True(t, mon9.Before(tue1))
	assert.False(t, tue1.Before(mon9))
	assert.Equal(t, "MON-9", mon9.String())
	assert.False(t, Coordinate{Weekday: "SAT", Period: 1}.Valid())
	assert.False(t, Coordinate{Weekday: Monday, Period: 10}.Valid())
	assert.Equal(t, 45, SlotsPerWeek)
}
