package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/models"
)

func at(day models.Weekday, period int) models.Coordinate {
	return models.Coordinate{Weekday: day, Period: period}
}

func TestPlanTakesAvailabilityInGridOrder(t *testing.T) {
	result := Plan(Request{
		Required:     2,
		Availability: []models.Coordinate{at(models.Wednesday, 3), at(models.Monday, 2), at(models.Monday, 1)},
	}, DefaultPolicy())

	assert.True(t, result.Success())
	assert.Equal(t, []models.Coordinate{at(models.Monday, 1), at(models.Monday, 2)}, result.Slots)
}

func TestPlanStopsRunsAtLimit(t *testing.T) {
	result := Plan(Request{
		Required: 4,
		Availability: []models.Coordinate{
			at(models.Monday, 1), at(models.Monday, 2), at(models.Monday, 3), at(models.Monday, 4),
		},
	}, DefaultPolicy())

	assert.False(t, result.Success())
	assert.Equal(t, 4, result.Requested)
	assert.Equal(t, 3, result.Allocated)
	assert.Equal(t, []models.Coordinate{at(models.Monday, 1), at(models.Monday, 2), at(models.Monday, 3)}, result.Slots)
}

func TestPlanRunResumesAfterGap(t *testing.T) {
	result := Plan(Request{
		Required: 6,
		Availability: []models.Coordinate{
			at(models.Tuesday, 1), at(models.Tuesday, 2), at(models.Tuesday, 3),
			at(models.Tuesday, 4), at(models.Tuesday, 5), at(models.Tuesday, 6),
		},
	}, DefaultPolicy())

	// 1-3 then 4 is skipped, 5-6 start a new run.
	assert.Equal(t, []models.Coordinate{
		at(models.Tuesday, 1), at(models.Tuesday, 2), at(models.Tuesday, 3),
		at(models.Tuesday, 5), at(models.Tuesday, 6),
	}, result.Slots)
}

func TestPlanSkipsClassConflicts(t *testing.T) {
	result := Plan(Request{
		Required:      1,
		Availability:  []models.Coordinate{at(models.Wednesday, 3)},
		ClassOccupied: []models.Coordinate{at(models.Wednesday, 3)},
	}, DefaultPolicy())

	assert.Zero(t, result.Allocated)
	assert.Empty(t, result.Slots)
	assert.False(t, result.Success())
}

func TestPlanSkipsTeacherConflicts(t *testing.T) {
	result := Plan(Request{
		Required:        2,
		Availability:    []models.Coordinate{at(models.Monday, 1), at(models.Monday, 2), at(models.Friday, 9)},
		TeacherOccupied: []models.Coordinate{at(models.Monday, 1)},
	}, DefaultPolicy())

	assert.Equal(t, []models.Coordinate{at(models.Monday, 2), at(models.Friday, 9)}, result.Slots)
}

func TestPlanHonoursReservationPool(t *testing.T) {
	result := Plan(Request{
		Required:     2,
		Availability: []models.Coordinate{at(models.Monday, 1), at(models.Monday, 2), at(models.Thursday, 4)},
		Reserved:     []models.Coordinate{at(models.Monday, 1)},
	}, DefaultPolicy())

	assert.Equal(t, []models.Coordinate{at(models.Monday, 2), at(models.Thursday, 4)}, result.Slots)
}

func TestPlanCountsCommittedSlotsInRuns(t *testing.T) {
	req := Request{
		Required:        2,
		Availability:    []models.Coordinate{at(models.Monday, 3), at(models.Monday, 4), at(models.Tuesday, 1)},
		TeacherOccupied: []models.Coordinate{at(models.Monday, 1), at(models.Monday, 2)},
	}

	result := Plan(req, DefaultPolicy())
	assert.Equal(t, []models.Coordinate{at(models.Monday, 3), at(models.Tuesday, 1)}, result.Slots)

	policy := DefaultPolicy()
	policy.RunCheckCountsExisting = false
	result = Plan(req, policy)
	assert.Equal(t, []models.Coordinate{at(models.Monday, 3), at(models.Monday, 4)}, result.Slots)
}

func TestPlanPriorityTakesAvailabilityVerbatim(t *testing.T) {
	result := Plan(Request{
		Required: 4,
		Priority: true,
		Availability: []models.Coordinate{
			at(models.Friday, 9), at(models.Monday, 1), at(models.Monday, 2), at(models.Monday, 3), at(models.Monday, 4),
		},
		ClassOccupied: []models.Coordinate{at(models.Friday, 9)},
		Reserved:      []models.Coordinate{at(models.Friday, 9), at(models.Monday, 1)},
	}, DefaultPolicy())

	require.True(t, result.Success())
	assert.Equal(t, []models.Coordinate{
		at(models.Friday, 9), at(models.Monday, 1), at(models.Monday, 2), at(models.Monday, 3),
	}, result.Slots)
}

func TestPlanPrioritySkipsOwnOccupancyAndDuplicates(t *testing.T) {
	result := Plan(Request{
		Required:        3,
		Priority:        true,
		Availability:    []models.Coordinate{at(models.Monday, 1), at(models.Monday, 1), at(models.Monday, 2), at(models.Tuesday, 1)},
		TeacherOccupied: []models.Coordinate{at(models.Monday, 2)},
	}, DefaultPolicy())

	assert.Equal(t, []models.Coordinate{at(models.Monday, 1), at(models.Tuesday, 1)}, result.Slots)
	assert.Equal(t, 2, result.Allocated)
}

func TestPlanRelaxedPassFillsOutsideAvailability(t *testing.T) {
	req := Request{
		Required:      3,
		Availability:  []models.Coordinate{at(models.Wednesday, 3)},
		ClassOccupied: []models.Coordinate{at(models.Monday, 1)},
		Reserved:      []models.Coordinate{at(models.Monday, 2)},
	}

	strict := Plan(req, DefaultPolicy())
	assert.Equal(t, 1, strict.Allocated)

	policy := DefaultPolicy()
	policy.RelaxedPass = true
	relaxed := Plan(req, policy)
	require.True(t, relaxed.Success())
	assert.Equal(t, []models.Coordinate{at(models.Wednesday, 3), at(models.Monday, 3), at(models.Monday, 4)}, relaxed.Slots)
}

func TestPlanZeroRequired(t *testing.T) {
	result := Plan(Request{Availability: []models.Coordinate{at(models.Monday, 1)}}, DefaultPolicy())
	assert.True(t, result.Success())
	assert.Empty(t, result.Slots)
}

func TestPlanDefaultsNonPositiveRunLimit(t *testing.T) {
	result := Plan(Request{
		Required: 4,
		Availability: []models.Coordinate{
			at(models.Monday, 1), at(models.Monday, 2), at(models.Monday, 3), at(models.Monday, 4),
		},
	}, Policy{})
	assert.Equal(t, 3, result.Allocated)
}

func TestPlanIsDeterministic(t *testing.T) {
	req := Request{
		Required: 5,
		Availability: []models.Coordinate{
			at(models.Friday, 1), at(models.Tuesday, 2), at(models.Monday, 7), at(models.Thursday, 4), at(models.Tuesday, 3),
		},
	}
	first := Plan(req, DefaultPolicy())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Plan(req, DefaultPolicy()))
	}
}
