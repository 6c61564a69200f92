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

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	execFallback
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{execFallback{db: db}}
}

// List returns teachers matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	order := orderClause(map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}, filter.SortBy, filter.SortOrder, "name")
	limit, offset := listWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT id, name, created_at, updated_at %s ORDER BY %s LIMIT %d OFFSET %d", base, order, limit, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID fetches a teacher by ID. A missing row yields sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, name, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, r.exec(exec), &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByName looks a teacher up by exact name (used by the seed loader).
func (r *TeacherRepository) FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Teacher, error) {
	const query = `SELECT id, name, created_at, updated_at FROM teachers WHERE name = $1 ORDER BY created_at LIMIT 1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, r.exec(exec), &teacher, query, name); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update renames a teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET name = :name, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return affectedOrNotFound(res)
}

// Delete removes the teacher row only; dependants must be removed first.
func (r *TeacherRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return affectedOrNotFound(res)
}
