package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

type availabilityRepository interface {
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error)
	FindByID(ctx context.Context, id string) (*models.Availability, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, teacherID string, coord models.Coordinate, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, a *models.Availability) error
	Update(ctx context.Context, a *models.Availability) error
	Delete(ctx context.Context, id string) error
}

// AvailabilityService manages the cells a teacher declares as teachable.
// Changing availability never moves committed slots.
type AvailabilityService struct {
	repo      availabilityRepository
	teachers  teacherFinder
	validator *validator.Validate
	logger    *zap.Logger
}

func NewAvailabilityService(repo availabilityRepository, teachers teacherFinder, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns availability ordered by weekday then period.
func (s *AvailabilityService) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error) {
	if filter.Weekday != "" {
		day, err := models.ParseWeekday(string(filter.Weekday))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekday")
		}
		filter.Weekday = day
	}
	if filter.TeacherID != "" {
		if err := s.ensureTeacher(ctx, filter.TeacherID); err != nil {
			return nil, err
		}
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list availability")
	}
	if items == nil {
		items = []models.Availability{}
	}
	return items, nil
}

func (s *AvailabilityService) Create(ctx context.Context, req dto.CreateAvailabilityRequest) (*models.Availability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	coord, err := parseCoordinate(req.Weekday, req.Period)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, req.TeacherID, coord, ""); err != nil {
		return nil, err
	}
	item := &models.Availability{TeacherID: req.TeacherID, Weekday: coord.Weekday, Period: coord.Period}
	if err := s.repo.Create(ctx, nil, item); err != nil {
		return nil, appErrors.Internal(err, "failed to create availability")
	}
	return item, nil
}

// Update moves an availability entry to another coordinate.
func (s *AvailabilityService) Update(ctx context.Context, id string, req dto.MoveRequest) (*models.Availability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	coord, err := parseCoordinate(req.Weekday, req.Period)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return nil, appErrors.Internal(err, "failed to load availability")
	}
	if err := s.ensureFree(ctx, item.TeacherID, coord, id); err != nil {
		return nil, err
	}
	item.Weekday, item.Period = coord.Weekday, coord.Period
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return nil, appErrors.Internal(err, "failed to update availability")
	}
	return item, nil
}

func (s *AvailabilityService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return appErrors.Internal(err, "failed to delete availability")
	}
	return nil
}

func (s *AvailabilityService) ensureTeacher(ctx context.Context, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, nil, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Internal(err, "failed to load teacher")
	}
	return nil
}

func (s *AvailabilityService) ensureFree(ctx context.Context, teacherID string, coord models.Coordinate, excludeID string) error {
	exists, err := s.repo.Exists(ctx, nil, teacherID, coord, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check availability")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "teacher already declared "+coord.String())
	}
	return nil
}
