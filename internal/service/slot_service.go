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
	"github.com/noah-isme/meu-horario-api/internal/scheduler"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

// Conflict dimensions reported by manual slot writes.
const (
	DimensionTeacher      = "TEACHER"
	DimensionClassSection = "CLASS_SECTION"
	DimensionWeeklyLoad   = "WEEKLY_SLOTS"
)

type slotRepository interface {
	slotStore
	slotLister
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Slot, error)
	Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// SlotService exposes manual slot edits. Every write is checked against the
// same teacher and class section occupancy rules the allocator uses.
type SlotService struct {
	db         txProvider
	repo       slotRepository
	subjects   subjectFinder
	locker     scheduleLocker
	timetables timetableInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

func NewSlotService(db txProvider, repo slotRepository, subjects subjectFinder, locker scheduleLocker, timetables timetableInvalidator, validate *validator.Validate, logger *zap.Logger) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewScheduleLocker(nil)
	}
	return &SlotService{db: db, repo: repo, subjects: subjects, locker: locker, timetables: timetables, validator: validate, logger: logger}
}

func (s *SlotService) List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error) {
	if filter.Weekday != "" {
		day, err := models.ParseWeekday(string(filter.Weekday))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekday")
		}
		filter.Weekday = day
	}
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list slots")
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return slots, nil
}

func (s *SlotService) Get(ctx context.Context, id string) (*models.Slot, error) {
	return s.load(ctx, nil, id)
}

// Create commits one slot for a subject after checking its weekly load and
// both occupancy dimensions.
func (s *SlotService) Create(ctx context.Context, req dto.CreateSlotRequest) (slot *models.Slot, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	coord, err := parseCoordinate(req.Weekday, req.Period)
	if err != nil {
		return nil, err
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

	subject, err := s.subject(ctx, tx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}

	count, err := s.repo.CountBySubject(ctx, tx, subject.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count subject slots")
	}
	if count >= subject.WeeklySlots {
		err = appErrors.Clone(appErrors.ErrConflict, "subject already has all its weekly slots").
			WithDetail("dimension", DimensionWeeklyLoad)
		return nil, err
	}
	if err = s.checkFree(ctx, tx, subject, coord, nil); err != nil {
		return nil, err
	}

	created, err := s.repo.BulkCreate(ctx, tx, subject.ID, []models.Coordinate{coord})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create slot")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit slot")
	}
	s.invalidate(ctx, subject)
	return &created[0], nil
}

// Update moves a slot. Its current cell does not count as a conflict.
func (s *SlotService) Update(ctx context.Context, id string, req dto.MoveRequest) (slot *models.Slot, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	coord, err := parseCoordinate(req.Weekday, req.Period)
	if err != nil {
		return nil, err
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

	slot, err = s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	subject, err := s.subject(ctx, tx, slot.SubjectID)
	if err != nil {
		return nil, err
	}
	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}

	current := slot.Coordinate()
	if current == coord {
		err = tx.Commit()
		if err != nil {
			return nil, appErrors.Internal(err, "failed to commit slot")
		}
		return slot, nil
	}
	if err = s.checkFree(ctx, tx, subject, coord, &current); err != nil {
		return nil, err
	}
	slot.Weekday, slot.Period = coord.Weekday, coord.Period
	if err = s.repo.Update(ctx, tx, slot); err != nil {
		return nil, appErrors.Internal(err, "failed to update slot")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit slot")
	}
	s.invalidate(ctx, subject)
	return slot, nil
}

func (s *SlotService) Delete(ctx context.Context, id string) error {
	slot, err := s.load(ctx, nil, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return appErrors.Internal(err, "failed to delete slot")
	}
	if subject, err := s.subjects.FindByID(ctx, nil, slot.SubjectID); err == nil {
		s.invalidate(ctx, subject)
	}
	return nil
}

// checkFree rejects coord when the subject's teacher or class section already
// holds it. ignore is the slot's own cell during a move.
func (s *SlotService) checkFree(ctx context.Context, tx *sqlx.Tx, subject *models.Subject, coord models.Coordinate, ignore *models.Coordinate) error {
	teacherCells, err := s.repo.OccupiedByTeacher(ctx, tx, subject.TeacherID)
	if err != nil {
		return appErrors.Internal(err, "failed to load teacher occupancy")
	}
	classCells, err := s.repo.OccupiedByClassSection(ctx, tx, subject.ClassSectionID)
	if err != nil {
		return appErrors.Internal(err, "failed to load class section occupancy")
	}
	teacher := scheduler.NewCoordinateSet(teacherCells...)
	class := scheduler.NewCoordinateSet(classCells...)
	if ignore != nil {
		teacher.Remove(*ignore)
		class.Remove(*ignore)
	}
	if teacher.Has(coord) {
		return appErrors.Clone(appErrors.ErrConflict, "teacher already teaches at "+coord.String()).
			WithDetail("dimension", DimensionTeacher)
	}
	if class.Has(coord) {
		return appErrors.Clone(appErrors.ErrConflict, "class section already has a subject at "+coord.String()).
			WithDetail("dimension", DimensionClassSection)
	}
	return nil
}

func (s *SlotService) load(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Slot, error) {
	slot, err := s.repo.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Internal(err, "failed to load slot")
	}
	return slot, nil
}

func (s *SlotService) subject(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}
	return subject, nil
}

func (s *SlotService) invalidate(ctx context.Context, subject *models.Subject) {
	if s.timetables != nil {
		s.timetables.Invalidate(ctx, subject.TeacherID, subject.ClassSectionID)
	}
}
