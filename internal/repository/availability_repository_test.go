package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/models"
)

func TestAvailabilityRepositoryListOrdersByWeekday(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "weekday", "period", "created_at"}).
		AddRow("a1", teacherUUID, "MON", 1, time.Now()).
		AddRow("a2", teacherUUID, "WED", 3, time.Now())
	mock.ExpectQuery(`FROM availabilities WHERE teacher_id = \$1 ORDER BY array_position\(.+\), period`).
		WithArgs(teacherUUID).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.AvailabilityFilter{TeacherID: teacherUUID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.Coordinate{Weekday: models.Wednesday, Period: 3}, list[1].Coordinate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM availabilities WHERE teacher_id = $1 AND weekday = $2 AND period = $3 AND id <> $4 LIMIT 1")).
		WithArgs("t1", "MON", 2, "a1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.Exists(context.Background(), nil, "t1", models.Coordinate{Weekday: models.Monday, Period: 2}, "a1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryPriorityPool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT a.weekday, a.period FROM availabilities a")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "period"}).AddRow("FRI", 9))

	pool, err := repo.PriorityPool(context.Background(), nil, []string{"club"})
	require.NoError(t, err)
	assert.Equal(t, []models.Coordinate{{Weekday: models.Friday, Period: 9}}, pool)

	empty, err := repo.PriorityPool(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
