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

// ClassSectionRepository manages class sections ("turmas").
type ClassSectionRepository struct {
	execFallback
}

func NewClassSectionRepository(db *sqlx.DB) *ClassSectionRepository {
	return &ClassSectionRepository{execFallback{db: db}}
}

func (r *ClassSectionRepository) List(ctx context.Context, filter models.ClassSectionFilter) ([]models.ClassSection, int, error) {
	base := "FROM class_sections WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	order := orderClause(map[string]string{
		"name":       "name",
		"created_at": "created_at",
	}, filter.SortBy, filter.SortOrder, "name")
	limit, offset := listWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT id, name, created_at, updated_at %s ORDER BY %s LIMIT %d OFFSET %d", base, order, limit, offset)
	var sections []models.ClassSection
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class sections: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count class sections: %w", err)
	}
	return sections, total, nil
}

func (r *ClassSectionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassSection, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT id, name, created_at, updated_at FROM class_sections WHERE id = $1`
	var section models.ClassSection
	if err := sqlx.GetContext(ctx, r.exec(exec), &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *ClassSectionRepository) FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.ClassSection, error) {
	const query = `SELECT id, name, created_at, updated_at FROM class_sections WHERE name = $1 ORDER BY created_at LIMIT 1`
	var section models.ClassSection
	if err := sqlx.GetContext(ctx, r.exec(exec), &section, query, name); err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *ClassSectionRepository) Create(ctx context.Context, exec sqlx.ExtContext, section *models.ClassSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO class_sections (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, section); err != nil {
		return fmt.Errorf("create class section: %w", err)
	}
	return nil
}

func (r *ClassSectionRepository) Update(ctx context.Context, section *models.ClassSection) error {
	section.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sections SET name = :name, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, section)
	if err != nil {
		return fmt.Errorf("update class section: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *ClassSectionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM class_sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class section: %w", err)
	}
	return affectedOrNotFound(res)
}
