package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/internal/scheduler"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type teacherFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error)
}

type availabilitySource interface {
	ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Availability, error)
	PriorityPool(ctx context.Context, exec sqlx.ExtContext, categories []string) ([]models.Coordinate, error)
}

type slotStore interface {
	CountBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int, error)
	OccupiedByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Coordinate, error)
	OccupiedByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) ([]models.Coordinate, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, subjectID string, coords []models.Coordinate) ([]models.Slot, error)
	DeleteBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int64, error)
}

type scheduleLocker interface {
	Acquire(ctx context.Context, tx *sqlx.Tx, teacherID, classSectionID string) (func(), error)
}

type timetableInvalidator interface {
	Invalidate(ctx context.Context, teacherID, classSectionID string)
	InvalidateScope(ctx context.Context, scope models.TimetableScope)
}

// AllocationServiceParams groups AllocationService collaborators.
type AllocationServiceParams struct {
	DB                 txProvider
	Subjects           subjectFinder
	Teachers           teacherFinder
	Availability       availabilitySource
	Slots              slotStore
	Locker             scheduleLocker
	Policy             scheduler.Policy
	PriorityCategories []string
	Timetables         timetableInvalidator
	Metrics            *MetricsService
	Logger             *zap.Logger
}

// AllocationService feeds store snapshots to the scheduler and persists its plan.
type AllocationService struct {
	db           txProvider
	subjects     subjectFinder
	teachers     teacherFinder
	availability availabilitySource
	slots        slotStore
	locker       scheduleLocker
	policy       scheduler.Policy
	matcher      scheduler.PriorityMatcher
	timetables   timetableInvalidator
	metrics      *MetricsService
	logger       *zap.Logger
}

func NewAllocationService(params AllocationServiceParams) *AllocationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := params.Locker
	if locker == nil {
		locker = NewScheduleLocker(nil)
	}
	return &AllocationService{
		db:           params.DB,
		subjects:     params.Subjects,
		teachers:     params.Teachers,
		availability: params.Availability,
		slots:        params.Slots,
		locker:       locker,
		policy:       params.Policy,
		matcher:      scheduler.NewPriorityMatcher(params.PriorityCategories),
		timetables:   params.Timetables,
		metrics:      params.Metrics,
		logger:       logger,
	}
}

// Allocate places a subject's weekly slots in its own transaction.
func (s *AllocationService) Allocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error) {
	return s.run(ctx, subjectID, false)
}

// Reallocate drops a subject's slots and allocates again atomically.
func (s *AllocationService) Reallocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error) {
	return s.run(ctx, subjectID, true)
}

func (s *AllocationService) run(ctx context.Context, subjectID string, reset bool) (result *dto.AllocationResult, err error) {
	subject, err := s.subjects.FindByID(ctx, nil, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.notFound(subjectID), nil
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin allocation")
	}
	release := func() {}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
		release()
	}()

	release, err = s.locker.Acquire(ctx, tx, subject.TeacherID, subject.ClassSectionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to lock schedule")
	}

	// Re-read under the lock so a concurrent delete is observed.
	subject, err = s.subjects.FindByID(ctx, tx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			_ = tx.Rollback()
			return s.notFound(subjectID), nil
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}

	if reset {
		if _, err = s.slots.DeleteBySubject(ctx, tx, subject.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to clear subject slots")
		}
	}

	result, err = s.AllocateTx(ctx, tx, subject)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Internal(err, "failed to commit allocation")
	}
	s.invalidate(ctx, subject)
	return result, nil
}

// AllocateTx runs one allocation inside the caller's transaction. The caller
// must already hold the schedule lock for the subject's teacher and class section.
func (s *AllocationService) AllocateTx(ctx context.Context, tx *sqlx.Tx, subject *models.Subject) (*dto.AllocationResult, error) {
	if subject == nil {
		return s.notFound(""), nil
	}
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("allocate", time.Since(start)) }()

	existing, err := s.slots.CountBySubject(ctx, tx, subject.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count subject slots")
	}
	if existing > 0 {
		s.metrics.ObserveAllocation(OutcomeAlreadyAllocated, subject.WeeklySlots, 0)
		s.logger.Info("subject already allocated", zap.String("subject_id", subject.ID), zap.Int("existing", existing))
		return &dto.AllocationResult{
			SubjectID: subject.ID,
			Requested: subject.WeeklySlots,
			Reason:    dto.ReasonAlreadyAllocated,
			Slots:     []models.Coordinate{},
		}, nil
	}

	teacher, err := s.teachers.FindByID(ctx, tx, subject.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}

	req, err := s.snapshot(ctx, tx, subject, teacher)
	if err != nil {
		return nil, err
	}
	plan := scheduler.Plan(req, s.policy)

	if _, err := s.slots.BulkCreate(ctx, tx, subject.ID, plan.Slots); err != nil {
		return nil, appErrors.Internal(err, "failed to persist slots")
	}

	outcome := OutcomeSuccess
	if !plan.Success() {
		outcome = OutcomePartial
	}
	s.metrics.ObserveAllocation(outcome, plan.Requested, plan.Allocated)
	s.logger.Info("subject allocated",
		zap.String("subject_id", subject.ID),
		zap.String("teacher_id", subject.TeacherID),
		zap.String("class_section_id", subject.ClassSectionID),
		zap.Bool("priority", req.Priority),
		zap.Int("requested", plan.Requested),
		zap.Int("allocated", plan.Allocated),
	)

	slots := plan.Slots
	if slots == nil {
		slots = []models.Coordinate{}
	}
	return &dto.AllocationResult{
		SubjectID: subject.ID,
		Requested: plan.Requested,
		Allocated: plan.Allocated,
		Success:   plan.Success(),
		Priority:  req.Priority,
		Slots:     slots,
	}, nil
}

func (s *AllocationService) snapshot(ctx context.Context, tx *sqlx.Tx, subject *models.Subject, teacher *models.Teacher) (scheduler.Request, error) {
	req := scheduler.Request{
		Required: subject.WeeklySlots,
		Priority: s.matcher.Matches(teacher.Name),
	}

	availability, err := s.availability.ListByTeacher(ctx, tx, teacher.ID)
	if err != nil {
		return req, appErrors.Internal(err, "failed to load teacher availability")
	}
	req.Availability = make([]models.Coordinate, len(availability))
	for i, a := range availability {
		req.Availability[i] = a.Coordinate()
	}

	if req.TeacherOccupied, err = s.slots.OccupiedByTeacher(ctx, tx, teacher.ID); err != nil {
		return req, appErrors.Internal(err, "failed to load teacher occupancy")
	}
	if req.Priority {
		return req, nil
	}
	if req.ClassOccupied, err = s.slots.OccupiedByClassSection(ctx, tx, subject.ClassSectionID); err != nil {
		return req, appErrors.Internal(err, "failed to load class section occupancy")
	}
	if req.Reserved, err = s.availability.PriorityPool(ctx, tx, s.matcher.Categories()); err != nil {
		return req, appErrors.Internal(err, "failed to load priority availability")
	}
	return req, nil
}

func (s *AllocationService) notFound(subjectID string) *dto.AllocationResult {
	s.metrics.ObserveAllocation(OutcomeNotFound, 0, 0)
	return &dto.AllocationResult{SubjectID: subjectID, Reason: dto.ReasonSubjectNotFound, Slots: []models.Coordinate{}}
}

func (s *AllocationService) invalidate(ctx context.Context, subject *models.Subject) {
	if s.timetables == nil || subject == nil {
		return
	}
	s.timetables.Invalidate(ctx, subject.TeacherID, subject.ClassSectionID)
}
