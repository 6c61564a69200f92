package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

type classSectionRepository interface {
	classSectionFinder
	List(ctx context.Context, filter models.ClassSectionFilter) ([]models.ClassSection, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, section *models.ClassSection) error
	Update(ctx context.Context, section *models.ClassSection) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type classSectionCascade interface {
	DeleteByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) (int64, error)
}

// ClassSectionRequest is the payload for creating or renaming a class section.
type ClassSectionRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// ClassSectionService manages class sections ("turmas").
type ClassSectionService struct {
	db         txProvider
	repo       classSectionRepository
	subjects   classSectionCascade
	slots      classSectionCascade
	locker     scheduleLocker
	timetables timetableInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

func NewClassSectionService(db txProvider, repo classSectionRepository, subjects, slots classSectionCascade, locker scheduleLocker, timetables timetableInvalidator, validate *validator.Validate, logger *zap.Logger) *ClassSectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewScheduleLocker(nil)
	}
	return &ClassSectionService{
		db:         db,
		repo:       repo,
		subjects:   subjects,
		slots:      slots,
		locker:     locker,
		timetables: timetables,
		validator:  validate,
		logger:     logger,
	}
}

func (s *ClassSectionService) List(ctx context.Context, filter models.ClassSectionFilter) ([]models.ClassSection, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list class sections")
	}
	return sections, paginate(filter.Page, filter.PageSize, total), nil
}

func (s *ClassSectionService) Get(ctx context.Context, id string) (*models.ClassSection, error) {
	return s.load(ctx, nil, id)
}

func (s *ClassSectionService) Create(ctx context.Context, req ClassSectionRequest) (*models.ClassSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class section payload")
	}
	section := &models.ClassSection{Name: strings.TrimSpace(req.Name)}
	if section.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := s.repo.Create(ctx, nil, section); err != nil {
		return nil, appErrors.Internal(err, "failed to create class section")
	}
	return section, nil
}

func (s *ClassSectionService) Update(ctx context.Context, id string, req ClassSectionRequest) (*models.ClassSection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class section payload")
	}
	section, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	section.Name = strings.TrimSpace(req.Name)
	if section.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := s.repo.Update(ctx, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Internal(err, "failed to update class section")
	}
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, "", id)
	}
	return section, nil
}

// Delete removes the slots of the section's subjects, the subjects and the
// section in one transaction.
func (s *ClassSectionService) Delete(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	release := func() {}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
		release()
	}()

	if _, err = s.load(ctx, tx, id); err != nil {
		return err
	}
	release, err = s.locker.Acquire(ctx, tx, "", id)
	if err != nil {
		return appErrors.Internal(err, "failed to lock schedule")
	}
	slots, err := s.slots.DeleteByClassSection(ctx, tx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete class section slots")
	}
	subjects, err := s.subjects.DeleteByClassSection(ctx, tx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete class section subjects")
	}
	if err = s.repo.Delete(ctx, tx, id); err != nil {
		return appErrors.Internal(err, "failed to delete class section")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit class section deletion")
	}
	s.logger.Info("class section deleted", zap.String("class_section_id", id), zap.Int64("slots", slots), zap.Int64("subjects", subjects))
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, "", id)
		// Teachers of the removed subjects lost slots too.
		s.timetables.InvalidateScope(ctx, models.ScopeTeacher)
	}
	return nil
}

func (s *ClassSectionService) load(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassSection, error) {
	section, err := s.repo.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return nil, appErrors.Internal(err, "failed to load class section")
	}
	return section, nil
}
