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

const subjectColumns = `id, name, weekly_slots, teacher_id, class_section_id, created_at, updated_at`

// SubjectRepository manages subjects ("disciplinas").
type SubjectRepository struct {
	execFallback
}

func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{execFallback{db: db}}
}

// List returns subjects matching filters along with total count.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	if anyMalformed(filter.TeacherID, filter.ClassSectionID) {
		return []models.Subject{}, 0, nil
	}
	base := "FROM subjects WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		base += fmt.Sprintf(" AND teacher_id = $%d", len(args))
	}
	if filter.ClassSectionID != "" {
		args = append(args, filter.ClassSectionID)
		base += fmt.Sprintf(" AND class_section_id = $%d", len(args))
	}
	order := orderClause(map[string]string{
		"name":         "name",
		"weekly_slots": "weekly_slots",
		"created_at":   "created_at",
	}, filter.SortBy, filter.SortOrder, "name")
	limit, offset := listWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", subjectColumns, base, order, limit, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// ListByTeacher returns every subject taught by teacherID.
func (r *SubjectRepository) ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Subject, error) {
	const query = `SELECT ` + subjectColumns + ` FROM subjects WHERE teacher_id = $1 ORDER BY created_at, id`
	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, r.exec(exec), &subjects, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}
	return subjects, nil
}

// ListAll returns every subject in creation order.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT ` + subjectColumns + ` FROM subjects ORDER BY created_at, id`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID answers sql.ErrNoRows for unknown or malformed ids.
func (r *SubjectRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := sqlx.GetContext(ctx, r.exec(exec), &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *SubjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (` + subjectColumns + `)
VALUES (:id, :name, :weekly_slots, :teacher_id, :class_section_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update persists name and weekly slot count. Ownership never changes.
func (r *SubjectRepository) Update(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, weekly_slots = :weekly_slots, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SubjectRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SubjectRepository) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM subjects WHERE teacher_id = $1`, teacherID)
	if err != nil {
		return 0, fmt.Errorf("delete teacher subjects: %w", err)
	}
	return res.RowsAffected()
}

func (r *SubjectRepository) DeleteByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM subjects WHERE class_section_id = $1`, classSectionID)
	if err != nil {
		return 0, fmt.Errorf("delete class section subjects: %w", err)
	}
	return res.RowsAffected()
}
