package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/meu-horario-api/internal/models"
)

// weekdayOrder sorts weekday codes Monday first instead of alphabetically.
const weekdayOrder = `array_position(ARRAY['MON','TUE','WED','THU','FRI']::varchar[], weekday)`

const availabilityColumns = `id, teacher_id, weekday, period, created_at`

// AvailabilityRepository stores declared teacher availability.
type AvailabilityRepository struct {
	execFallback
}

func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{execFallback{db: db}}
}

// List returns availability ordered by weekday then period.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error) {
	if anyMalformed(filter.TeacherID) {
		return []models.Availability{}, nil
	}
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.Weekday != "" {
		args = append(args, filter.Weekday)
		conditions = append(conditions, fmt.Sprintf("weekday = $%d", len(args)))
	}
	query := "SELECT " + availabilityColumns + " FROM availabilities"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + weekdayOrder + ", period, teacher_id"

	var out []models.Availability
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	return out, nil
}

// ListByTeacher returns a teacher's availability in declaration order.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Availability, error) {
	const query = `SELECT ` + availabilityColumns + ` FROM availabilities WHERE teacher_id = $1 ORDER BY created_at, id`
	var out []models.Availability
	if err := sqlx.SelectContext(ctx, r.exec(exec), &out, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher availability: %w", err)
	}
	return out, nil
}

func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.Availability, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + availabilityColumns + ` FROM availabilities WHERE id = $1`
	var a models.Availability
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// Exists reports whether teacherID already declared the coordinate, ignoring excludeID.
func (r *AvailabilityRepository) Exists(ctx context.Context, exec sqlx.ExtContext, teacherID string, coord models.Coordinate, excludeID string) (bool, error) {
	query := `SELECT 1 FROM availabilities WHERE teacher_id = $1 AND weekday = $2 AND period = $3`
	args := []interface{}{teacherID, coord.Weekday, coord.Period}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check availability: %w", err)
	}
	return true, nil
}

func (r *AvailabilityRepository) Create(ctx context.Context, exec sqlx.ExtContext, a *models.Availability) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO availabilities (id, teacher_id, weekday, period, created_at)
VALUES (:id, :teacher_id, :weekday, :period, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, a); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update moves an availability entry to another coordinate.
func (r *AvailabilityRepository) Update(ctx context.Context, a *models.Availability) error {
	const query = `UPDATE availabilities SET weekday = :weekday, period = :period WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteByTeacher removes every availability row of a teacher.
func (r *AvailabilityRepository) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM availabilities WHERE teacher_id = $1`, teacherID)
	if err != nil {
		return 0, fmt.Errorf("delete teacher availability: %w", err)
	}
	return res.RowsAffected()
}

// PriorityPool returns the distinct coordinates declared by any teacher whose
// name contains one of the given lowercase substrings.
func (r *AvailabilityRepository) PriorityPool(ctx context.Context, exec sqlx.ExtContext, categories []string) ([]models.Coordinate, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	patterns := make([]string, len(categories))
	for i, c := range categories {
		patterns[i] = "%" + strings.ToLower(c) + "%"
	}
	const query = `SELECT DISTINCT a.weekday, a.period FROM availabilities a
JOIN teachers t ON t.id = a.teacher_id
WHERE LOWER(t.name) LIKE ANY($1)`
	var out []models.Coordinate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &out, query, pq.Array(patterns)); err != nil {
		return nil, fmt.Errorf("list priority availability: %w", err)
	}
	return out, nil
}
