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

type teacherRepository interface {
	teacherFinder
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type teacherAvailabilityStore interface {
	ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Availability, error)
	DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error)
}

type teacherSubjectStore interface {
	ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Subject, error)
	DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error)
}

type teacherSlotStore interface {
	DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error)
}

// CreateTeacherRequest represents payload for creating teachers.
type CreateTeacherRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// UpdateTeacherRequest represents payload for updating teachers.
type UpdateTeacherRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// TeacherDeletion reports what a teacher cascade removed.
type TeacherDeletion struct {
	TeacherID      string `json:"teacherId"`
	Slots          int64  `json:"slots"`
	Subjects       int64  `json:"subjects"`
	Availabilities int64  `json:"availabilities"`
}

// TeacherServiceParams groups TeacherService collaborators.
type TeacherServiceParams struct {
	DB           txProvider
	Teachers     teacherRepository
	Availability teacherAvailabilityStore
	Subjects     teacherSubjectStore
	Slots        teacherSlotStore
	Locker       scheduleLocker
	Timetables   timetableInvalidator
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// TeacherService orchestrates teacher operations.
type TeacherService struct {
	db           txProvider
	repo         teacherRepository
	availability teacherAvailabilityStore
	subjects     teacherSubjectStore
	slots        teacherSlotStore
	locker       scheduleLocker
	timetables   timetableInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(params TeacherServiceParams) *TeacherService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := params.Locker
	if locker == nil {
		locker = NewScheduleLocker(nil)
	}
	return &TeacherService{
		db:           params.DB,
		repo:         params.Teachers,
		availability: params.Availability,
		subjects:     params.Subjects,
		slots:        params.Slots,
		locker:       locker,
		timetables:   params.Timetables,
		validator:    validate,
		logger:       logger,
	}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list teachers")
	}
	return teachers, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher with declared availability and taught subjects.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.TeacherDetail, error) {
	teacher, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	availability, err := s.availability.ListByTeacher(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load availability")
	}
	subjects, err := s.subjects.ListByTeacher(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subjects")
	}
	detail := &models.TeacherDetail{
		Teacher:      *teacher,
		Availability: availability,
		Subjects:     subjects,
	}
	if detail.Availability == nil {
		detail.Availability = []models.Availability{}
	}
	if detail.Subjects == nil {
		detail.Subjects = []models.Subject{}
	}
	return detail, nil
}

// Create registers a new teacher record.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher := &models.Teacher{Name: strings.TrimSpace(req.Name)}
	if teacher.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := s.repo.Create(ctx, nil, teacher); err != nil {
		return nil, appErrors.Internal(err, "failed to create teacher")
	}
	return teacher, nil
}

// Update renames a teacher. Renaming can move a teacher in or out of a
// priority category; existing slots are left untouched.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	teacher.Name = strings.TrimSpace(req.Name)
	if teacher.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if err := s.repo.Update(ctx, teacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to update teacher")
	}
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, id, "")
	}
	return teacher, nil
}

// Delete removes the teacher's slots, subjects, availability and finally
// the teacher, in that order, in one transaction.
func (s *TeacherService) Delete(ctx context.Context, id string) (result *TeacherDeletion, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	release := func() {}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
		release()
	}()

	if _, err = s.load(ctx, tx, id); err != nil {
		return nil, err
	}
	release, err = s.locker.Acquire(ctx, tx, id, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}
	subjects, err := s.subjects.ListByTeacher(ctx, tx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subjects")
	}

	result = &TeacherDeletion{TeacherID: id}
	if result.Slots, err = s.slots.DeleteByTeacher(ctx, tx, id); err != nil {
		return nil, appErrors.Internal(err, "failed to delete teacher slots")
	}
	if result.Subjects, err = s.subjects.DeleteByTeacher(ctx, tx, id); err != nil {
		return nil, appErrors.Internal(err, "failed to delete teacher subjects")
	}
	if result.Availabilities, err = s.availability.DeleteByTeacher(ctx, tx, id); err != nil {
		return nil, appErrors.Internal(err, "failed to delete teacher availability")
	}
	if err = s.repo.Delete(ctx, tx, id); err != nil {
		return nil, appErrors.Internal(err, "failed to delete teacher")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit teacher deletion")
	}

	s.logger.Info("teacher deleted",
		zap.String("teacher_id", id),
		zap.Int64("slots", result.Slots),
		zap.Int64("subjects", result.Subjects),
		zap.Int64("availabilities", result.Availabilities),
	)
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, id, "")
		for _, subject := range subjects {
			s.timetables.Invalidate(ctx, "", subject.ClassSectionID)
		}
	}
	return result, nil
}

func (s *TeacherService) load(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	return teacher, nil
}
