package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/models"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

const timetableCachePrefix = "timetable:"

type timetableEntrySource interface {
	EntriesForTeacher(ctx context.Context, teacherID string) ([]models.SlotEntry, error)
	EntriesForClassSection(ctx context.Context, classSectionID string) ([]models.SlotEntry, error)
}

// TimetableService renders the weekly grid of a class section or teacher and
// caches it until a write touches that week.
type TimetableService struct {
	entries  timetableEntrySource
	teachers teacherFinder
	sections classSectionFinder
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
}

func NewTimetableService(entries timetableEntrySource, teachers teacherFinder, sections classSectionFinder, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{entries: entries, teachers: teachers, sections: sections, cache: cache, ttl: ttl, logger: logger}
}

func timetableKey(scope models.TimetableScope, id string) string {
	return timetableCachePrefix + string(scope) + ":" + id
}

// Get returns the grid for scope/id and whether it came from the cache.
func (s *TimetableService) Get(ctx context.Context, scope models.TimetableScope, id string) (*models.Timetable, bool, error) {
	if !scope.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown timetable scope")
	}
	key := timetableKey(scope, id)
	var cached models.Timetable
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	name, entries, err := s.load(ctx, scope, id)
	if err != nil {
		return nil, false, err
	}
	table := BuildTimetable(scope, id, name, entries)
	_ = s.cache.Set(ctx, key, table, s.ttl)
	return table, false, nil
}

func (s *TimetableService) load(ctx context.Context, scope models.TimetableScope, id string) (string, []models.SlotEntry, error) {
	var (
		name    string
		entries []models.SlotEntry
		err     error
	)
	switch scope {
	case models.ScopeTeacher:
		var teacher *models.Teacher
		if teacher, err = s.teachers.FindByID(ctx, nil, id); err == nil {
			name = teacher.Name
			entries, err = s.entries.EntriesForTeacher(ctx, id)
		}
	default:
		var section *models.ClassSection
		if section, err = s.sections.FindByID(ctx, nil, id); err == nil {
			name = section.Name
			entries, err = s.entries.EntriesForClassSection(ctx, id)
		}
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Clone(appErrors.ErrNotFound, string(scope)+" not found")
		}
		return "", nil, appErrors.Internal(err, "failed to load timetable")
	}
	return name, entries, nil
}

// Invalidate drops the cached grids of a teacher and a class section; empty
// ids are skipped.
func (s *TimetableService) Invalidate(ctx context.Context, teacherID, classSectionID string) {
	var keys []string
	if teacherID != "" {
		keys = append(keys, timetableKey(models.ScopeTeacher, teacherID))
	}
	if classSectionID != "" {
		keys = append(keys, timetableKey(models.ScopeClassSection, classSectionID))
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

// InvalidateScope drops every cached grid of one scope.
func (s *TimetableService) InvalidateScope(ctx context.Context, scope models.TimetableScope) {
	_ = s.cache.InvalidatePattern(ctx, timetableKey(scope, "*"))
}

// BuildTimetable lays entries onto the 5x9 grid. Cells without an entry stay
// empty. Filled counts occupied cells; Overlaps counts cells with more than one entry.
func BuildTimetable(scope models.TimetableScope, id, name string, entries []models.SlotEntry) *models.Timetable {
	table := &models.Timetable{
		Scope:      scope,
		TargetID:   id,
		TargetName: name,
		Days:       make([]models.TimetableDay, len(models.Weekdays)),
	}
	for i, day := range models.Weekdays {
		cells := make([]models.TimetableCell, models.LastPeriod)
		for p := range cells {
			cells[p].Period = p + models.FirstPeriod
			cells[p].Entries = []models.SlotEntry{}
		}
		table.Days[i] = models.TimetableDay{Weekday: day, Periods: cells}
	}
	for _, entry := range entries {
		day := entry.Weekday.Index()
		if day < 0 || !models.ValidPeriod(entry.Period) {
			continue
		}
		cell := &table.Days[day].Periods[entry.Period-models.FirstPeriod]
		switch len(cell.Entries) {
		case 0:
			table.Filled++
		case 1:
			table.Overlaps++
		}
		cell.Entries = append(cell.Entries, entry)
	}
	return table
}
