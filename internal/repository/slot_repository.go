package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meu-horario-api/internal/models"
)

const slotColumns = `s.id, s.subject_id, s.weekday, s.period, s.created_at`

// SlotRepository persists committed timetable slots ("horarios").
type SlotRepository struct {
	execFallback
}

func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{execFallback{db: db}}
}

// List returns slots filtered by subject, owner or weekday in grid order.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error) {
	if anyMalformed(filter.SubjectID, filter.TeacherID, filter.ClassSectionID) {
		return []models.Slot{}, nil
	}
	var conditions []string
	var args []interface{}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("s.subject_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("d.teacher_id = $%d", len(args)))
	}
	if filter.ClassSectionID != "" {
		args = append(args, filter.ClassSectionID)
		conditions = append(conditions, fmt.Sprintf("d.class_section_id = $%d", len(args)))
	}
	if filter.Weekday != "" {
		args = append(args, filter.Weekday)
		conditions = append(conditions, fmt.Sprintf("s.weekday = $%d", len(args)))
	}
	query := "SELECT " + slotColumns + " FROM slots s JOIN subjects d ON d.id = s.subject_id"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY array_position(ARRAY['MON','TUE','WED','THU','FRI']::varchar[], s.weekday), s.period, s.subject_id"

	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (r *SlotRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Slot, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + slotColumns + ` FROM slots s WHERE s.id = $1`
	var slot models.Slot
	if err := sqlx.GetContext(ctx, r.exec(exec), &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// CountBySubject returns how many slots a subject already holds.
func (r *SlotRepository) CountBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM slots WHERE subject_id = $1`, subjectID); err != nil {
		return 0, fmt.Errorf("count subject slots: %w", err)
	}
	return count, nil
}

// OccupiedByTeacher returns every coordinate used by any subject of the teacher.
func (r *SlotRepository) OccupiedByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Coordinate, error) {
	const query = `SELECT s.weekday, s.period FROM slots s JOIN subjects d ON d.id = s.subject_id WHERE d.teacher_id = $1`
	var coords []models.Coordinate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &coords, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher occupancy: %w", err)
	}
	return coords, nil
}

// OccupiedByClassSection returns every coordinate used by any subject of the class section.
func (r *SlotRepository) OccupiedByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) ([]models.Coordinate, error) {
	const query = `SELECT s.weekday, s.period FROM slots s JOIN subjects d ON d.id = s.subject_id WHERE d.class_section_id = $1`
	var coords []models.Coordinate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &coords, query, classSectionID); err != nil {
		return nil, fmt.Errorf("list class section occupancy: %w", err)
	}
	return coords, nil
}

// BulkCreate inserts coordinates for a subject in one statement and returns the rows written.
func (r *SlotRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, subjectID string, coords []models.Coordinate) ([]models.Slot, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	slots := make([]models.Slot, len(coords))
	for i, c := range coords {
		slots[i] = models.Slot{
			ID:        uuid.NewString(),
			SubjectID: subjectID,
			Weekday:   c.Weekday,
			Period:    c.Period,
			CreatedAt: now,
		}
	}
	const query = `INSERT INTO slots (id, subject_id, weekday, period, created_at)
VALUES (:id, :subject_id, :weekday, :period, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slots); err != nil {
		return nil, fmt.Errorf("bulk create slots: %w", err)
	}
	return slots, nil
}

func (r *SlotRepository) Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error {
	const query = `UPDATE slots SET weekday = :weekday, period = :period WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SlotRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SlotRepository) DeleteBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM slots WHERE subject_id = $1`, subjectID)
	if err != nil {
		return 0, fmt.Errorf("delete subject slots: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByTeacher removes the slots of every subject the teacher owns.
func (r *SlotRepository) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	const query = `DELETE FROM slots WHERE subject_id IN (SELECT id FROM subjects WHERE teacher_id = $1)`
	res, err := r.exec(exec).ExecContext(ctx, query, teacherID)
	if err != nil {
		return 0, fmt.Errorf("delete teacher slots: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByClassSection removes the slots of every subject of the class section.
func (r *SlotRepository) DeleteByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) (int64, error) {
	const query = `DELETE FROM slots WHERE subject_id IN (SELECT id FROM subjects WHERE class_section_id = $1)`
	res, err := r.exec(exec).ExecContext(ctx, query, classSectionID)
	if err != nil {
		return 0, fmt.Errorf("delete class section slots: %w", err)
	}
	return res.RowsAffected()
}

// EntriesForTeacher returns the teacher's slots joined with display names.
func (r *SlotRepository) EntriesForTeacher(ctx context.Context, teacherID string) ([]models.SlotEntry, error) {
	return r.entries(ctx, "d.teacher_id = $1", teacherID)
}

// EntriesForClassSection returns the class section's slots joined with display names.
func (r *SlotRepository) EntriesForClassSection(ctx context.Context, classSectionID string) ([]models.SlotEntry, error) {
	return r.entries(ctx, "d.class_section_id = $1", classSectionID)
}

func (r *SlotRepository) entries(ctx context.Context, where string, arg string) ([]models.SlotEntry, error) {
	query := `SELECT s.id AS slot_id, s.weekday, s.period, d.id AS subject_id, d.name AS subject_name,
t.id AS teacher_id, t.name AS teacher_name, c.id AS class_section_id, c.name AS class_section_name
FROM slots s
JOIN subjects d ON d.id = s.subject_id
JOIN teachers t ON t.id = d.teacher_id
JOIN class_sections c ON c.id = d.class_section_id
WHERE ` + where + `
ORDER BY ` + weekdayOrder + `, s.period, d.name, s.id`
	var entries []models.SlotEntry
	if err := r.db.SelectContext(ctx, &entries, query, arg); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}
