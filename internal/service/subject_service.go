package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

type subjectRepository interface {
	subjectFinder
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error
	Update(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type classSectionFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassSection, error)
}

type slotLister interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error)
}

type txAllocator interface {
	AllocateTx(ctx context.Context, tx *sqlx.Tx, subject *models.Subject) (*dto.AllocationResult, error)
}

// SubjectServiceParams groups SubjectService collaborators.
type SubjectServiceParams struct {
	DB            txProvider
	Subjects      subjectRepository
	Teachers      teacherFinder
	ClassSections classSectionFinder
	Slots         slotStore
	SlotLister    slotLister
	Allocator     txAllocator
	Locker        scheduleLocker
	Timetables    timetableInvalidator
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// SubjectService manages subjects and keeps their slots consistent with
// their weekly load.
type SubjectService struct {
	db         txProvider
	repo       subjectRepository
	teachers   teacherFinder
	sections   classSectionFinder
	slots      slotStore
	slotList   slotLister
	allocator  txAllocator
	locker     scheduleLocker
	timetables timetableInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

func NewSubjectService(params SubjectServiceParams) *SubjectService {
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
	return &SubjectService{
		db:         params.DB,
		repo:       params.Subjects,
		teachers:   params.Teachers,
		sections:   params.ClassSections,
		slots:      params.Slots,
		slotList:   params.SlotLister,
		allocator:  params.Allocator,
		locker:     locker,
		timetables: params.Timetables,
		validator:  validate,
		logger:     logger,
	}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list subjects")
	}
	return subjects, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns a subject with its teacher, class section and slots.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	detail := &models.SubjectDetail{Subject: *subject, Slots: []models.Slot{}}
	if teacher, err := s.teachers.FindByID(ctx, nil, subject.TeacherID); err == nil {
		detail.Teacher = teacher
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	if section, err := s.sections.FindByID(ctx, nil, subject.ClassSectionID); err == nil {
		detail.ClassSection = section
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load class section")
	}
	slots, err := s.slotList.List(ctx, models.SlotFilter{SubjectID: subject.ID})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subject slots")
	}
	if slots != nil {
		detail.Slots = slots
	}
	return detail, nil
}

// Create inserts the subject and allocates its weekly slots in the same
// transaction. A partial allocation still commits; any store failure rolls
// back both.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (resp *dto.SubjectAllocationResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject := &models.Subject{
		Name:           strings.TrimSpace(req.Name),
		WeeklySlots:    req.WeeklySlots,
		TeacherID:      req.TeacherID,
		ClassSectionID: req.ClassSectionID,
	}
	if subject.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}

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

	if err = s.ensureOwners(ctx, tx, subject.TeacherID, subject.ClassSectionID); err != nil {
		return nil, err
	}
	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}
	if err = s.repo.Create(ctx, tx, subject); err != nil {
		return nil, appErrors.Internal(err, "failed to create subject")
	}
	allocation, err := s.allocator.AllocateTx(ctx, tx, subject)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit subject")
	}
	s.invalidate(ctx, subject)
	return &dto.SubjectAllocationResponse{Subject: *subject, Allocation: allocation}, nil
}

// Update renames a subject. Changing the weekly load clears its slots and
// allocates again in the same transaction.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (resp *dto.SubjectAllocationResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

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

	subject, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			err = appErrors.Clone(appErrors.ErrValidation, "name is required")
			return nil, err
		}
		subject.Name = name
	}
	reallocate := req.WeeklySlots != nil && *req.WeeklySlots != subject.WeeklySlots
	if reallocate {
		subject.WeeklySlots = *req.WeeklySlots
	}
	if err = s.repo.Update(ctx, tx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Internal(err, "failed to update subject")
	}

	resp = &dto.SubjectAllocationResponse{Subject: *subject}
	if reallocate {
		if _, err = s.slots.DeleteBySubject(ctx, tx, subject.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to clear subject slots")
		}
		if resp.Allocation, err = s.allocator.AllocateTx(ctx, tx, subject); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit subject")
	}
	if reallocate {
		s.invalidate(ctx, subject)
	}
	return resp, nil
}

// Delete removes the subject's slots and then the subject atomically.
func (s *SubjectService) Delete(ctx context.Context, id string) (err error) {
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

	subject, err := s.load(ctx, tx, id)
	if err != nil {
		return err
	}
	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return appErrors.Internal(err, "failed to lock schedule")
	}
	removed, err := s.slots.DeleteBySubject(ctx, tx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to delete subject slots")
	}
	if err = s.repo.Delete(ctx, tx, id); err != nil {
		return appErrors.Internal(err, "failed to delete subject")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit subject deletion")
	}
	s.logger.Info("subject deleted", zap.String("subject_id", id), zap.Int64("slots_removed", removed))
	s.invalidate(ctx, subject)
	return nil
}

func (s *SubjectService) load(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}
	return subject, nil
}

func (s *SubjectService) ensureOwners(ctx context.Context, exec sqlx.ExtContext, teacherID, classSectionID string) error {
	if _, err := s.teachers.FindByID(ctx, exec, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Internal(err, "failed to load teacher")
	}
	if _, err := s.sections.FindByID(ctx, exec, classSectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class section not found")
		}
		return appErrors.Internal(err, "failed to load class section")
	}
	return nil
}

func (s *SubjectService) invalidate(ctx context.Context, subject *models.Subject) {
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, subject.TeacherID, subject.ClassSectionID)
	}
}
