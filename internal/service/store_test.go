package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memStore is an in-memory stand-in for the postgres repositories. It ignores
// the exec argument, so rollbacks are asserted through sqlmock expectations.
type memStore struct {
	mu           sync.Mutex
	seq          int
	teachers     map[string]models.Teacher
	sections     map[string]models.ClassSection
	subjects     map[string]models.Subject
	availability []models.Availability
	slots        []models.Slot

	bulkCreateErr error
}

func newMemStore() *memStore {
	return &memStore{
		teachers: map[string]models.Teacher{},
		sections: map[string]models.ClassSection{},
		subjects: map[string]models.Subject{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addTeacher(name string, cells ...models.Coordinate) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("teacher")
	m.teachers[id] = models.Teacher{ID: id, Name: name}
	for _, c := range cells {
		m.availability = append(m.availability, models.Availability{ID: m.nextID("availability"), TeacherID: id, Weekday: c.Weekday, Period: c.Period})
	}
	return id
}

func (m *memStore) addSection(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("section")
	m.sections[id] = models.ClassSection{ID: id, Name: name}
	return id
}

func (m *memStore) addSubject(name string, weekly int, teacherID, sectionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("subject")
	m.subjects[id] = models.Subject{ID: id, Name: name, WeeklySlots: weekly, TeacherID: teacherID, ClassSectionID: sectionID}
	return id
}

func (m *memStore) addSlot(subjectID string, c models.Coordinate) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("slot")
	m.slots = append(m.slots, models.Slot{ID: id, SubjectID: subjectID, Weekday: c.Weekday, Period: c.Period})
	return id
}

func (m *memStore) slotsOf(subjectID string) []models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Coordinate
	for _, s := range m.slots {
		if s.SubjectID == subjectID {
			out = append(out, s.Coordinate())
		}
	}
	return out
}

func (m *memStore) occupied(match func(models.Subject) bool) []models.Coordinate {
	var out []models.Coordinate
	for _, s := range m.slots {
		if match(m.subjects[s.SubjectID]) {
			out = append(out, s.Coordinate())
		}
	}
	return out
}

func (m *memStore) removeSlots(match func(models.Slot) bool) int64 {
	kept := m.slots[:0]
	var removed int64
	for _, s := range m.slots {
		if match(s) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	m.slots = kept
	return removed
}

func (m *memStore) removeSubjects(match func(models.Subject) bool) int64 {
	var removed int64
	for id, s := range m.subjects {
		if match(s) {
			delete(m.subjects, id)
			removed++
		}
	}
	return removed
}

type fakeTeachers struct{ *memStore }

func (f fakeTeachers) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Teacher, 0, len(f.teachers))
	for _, t := range f.teachers {
		if filter.Search == "" || strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter.Search)) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f fakeTeachers) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f fakeTeachers) Create(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	teacher.ID = f.nextID("teacher")
	f.teachers[teacher.ID] = *teacher
	return nil
}

func (f fakeTeachers) Update(ctx context.Context, teacher *models.Teacher) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teachers[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	f.teachers[teacher.ID] = *teacher
	return nil
}

func (f fakeTeachers) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teachers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.teachers, id)
	return nil
}

type fakeSections struct{ *memStore }

func (f fakeSections) List(ctx context.Context, filter models.ClassSectionFilter) ([]models.ClassSection, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ClassSection, 0, len(f.sections))
	for _, s := range f.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f fakeSections) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ClassSection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeSections) Create(ctx context.Context, exec sqlx.ExtContext, section *models.ClassSection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	section.ID = f.nextID("section")
	f.sections[section.ID] = *section
	return nil
}

func (f fakeSections) Update(ctx context.Context, section *models.ClassSection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sections[section.ID]; !ok {
		return sql.ErrNoRows
	}
	f.sections[section.ID] = *section
	return nil
}

func (f fakeSections) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sections[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.sections, id)
	return nil
}

type fakeSubjects struct{ *memStore }

func (f fakeSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Subject, 0, len(f.subjects))
	for _, s := range f.subjects {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassSectionID != "" && s.ClassSectionID != filter.ClassSectionID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f fakeSubjects) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeSubjects) ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Subject, error) {
	out, _, err := f.List(ctx, models.SubjectFilter{TeacherID: teacherID})
	return out, err
}

func (f fakeSubjects) Create(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject.ID = f.nextID("subject")
	f.subjects[subject.ID] = *subject
	return nil
}

func (f fakeSubjects) Update(ctx context.Context, exec sqlx.ExtContext, subject *models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	f.subjects[subject.ID] = *subject
	return nil
}

func (f fakeSubjects) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.subjects, id)
	return nil
}

func (f fakeSubjects) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeSubjects(func(s models.Subject) bool { return s.TeacherID == teacherID }), nil
}

func (f fakeSubjects) DeleteByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeSubjects(func(s models.Subject) bool { return s.ClassSectionID == classSectionID }), nil
}

type fakeAvailability struct{ *memStore }

func (f fakeAvailability) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Availability
	for _, a := range f.availability {
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Weekday != "" && a.Weekday != filter.Weekday {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f fakeAvailability) ListByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Availability, error) {
	return f.List(ctx, models.AvailabilityFilter{TeacherID: teacherID})
}

func (f fakeAvailability) FindByID(ctx context.Context, id string) (*models.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.availability {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeAvailability) Exists(ctx context.Context, exec sqlx.ExtContext, teacherID string, coord models.Coordinate, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.availability {
		if a.TeacherID == teacherID && a.Coordinate() == coord && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAvailability) Create(ctx context.Context, exec sqlx.ExtContext, a *models.Availability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID("availability")
	f.availability = append(f.availability, *a)
	return nil
}

func (f fakeAvailability) Update(ctx context.Context, a *models.Availability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.availability {
		if f.availability[i].ID == a.ID {
			f.availability[i] = *a
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeAvailability) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.availability {
		if f.availability[i].ID == id {
			f.availability = append(f.availability[:i], f.availability[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeAvailability) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.availability[:0]
	var removed int64
	for _, a := range f.availability {
		if a.TeacherID == teacherID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	f.availability = kept
	return removed, nil
}

func (f fakeAvailability) PriorityPool(ctx context.Context, exec sqlx.ExtContext, categories []string) ([]models.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[models.Coordinate]bool{}
	var out []models.Coordinate
	for _, a := range f.availability {
		name := strings.ToLower(f.teachers[a.TeacherID].Name)
		for _, c := range categories {
			if strings.Contains(name, c) && !seen[a.Coordinate()] {
				seen[a.Coordinate()] = true
				out = append(out, a.Coordinate())
			}
		}
	}
	return out, nil
}

type fakeSlots struct{ *memStore }

func (f fakeSlots) List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Slot
	for _, s := range f.slots {
		subject := f.subjects[s.SubjectID]
		if filter.SubjectID != "" && s.SubjectID != filter.SubjectID {
			continue
		}
		if filter.TeacherID != "" && subject.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassSectionID != "" && subject.ClassSectionID != filter.ClassSectionID {
			continue
		}
		if filter.Weekday != "" && s.Weekday != filter.Weekday {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f fakeSlots) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeSlots) CountBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int, error) {
	return len(f.slotsOf(subjectID)), nil
}

func (f fakeSlots) OccupiedByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) ([]models.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupied(func(s models.Subject) bool { return s.TeacherID == teacherID }), nil
}

func (f fakeSlots) OccupiedByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) ([]models.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupied(func(s models.Subject) bool { return s.ClassSectionID == classSectionID }), nil
}

func (f fakeSlots) BulkCreate(ctx context.Context, exec sqlx.ExtContext, subjectID string, coords []models.Coordinate) ([]models.Slot, error) {
	if f.bulkCreateErr != nil {
		return nil, f.bulkCreateErr
	}
	out := make([]models.Slot, 0, len(coords))
	for _, c := range coords {
		id := f.addSlot(subjectID, c)
		out = append(out, models.Slot{ID: id, SubjectID: subjectID, Weekday: c.Weekday, Period: c.Period})
	}
	return out, nil
}

func (f fakeSlots) Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.slots {
		if f.slots[i].ID == slot.ID {
			f.slots[i] = *slot
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeSlots) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeSlots(func(s models.Slot) bool { return s.ID == id }) == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (f fakeSlots) DeleteBySubject(ctx context.Context, exec sqlx.ExtContext, subjectID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeSlots(func(s models.Slot) bool { return s.SubjectID == subjectID }), nil
}

func (f fakeSlots) DeleteByTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeSlots(func(s models.Slot) bool { return f.subjects[s.SubjectID].TeacherID == teacherID }), nil
}

func (f fakeSlots) DeleteByClassSection(ctx context.Context, exec sqlx.ExtContext, classSectionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeSlots(func(s models.Slot) bool { return f.subjects[s.SubjectID].ClassSectionID == classSectionID }), nil
}

func (f fakeSlots) entries(match func(models.Subject) bool) []models.SlotEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SlotEntry
	for _, s := range f.slots {
		subject := f.subjects[s.SubjectID]
		if !match(subject) {
			continue
		}
		out = append(out, models.SlotEntry{
			SlotID:           s.ID,
			Weekday:          s.Weekday,
			Period:           s.Period,
			SubjectID:        subject.ID,
			SubjectName:      subject.Name,
			TeacherID:        subject.TeacherID,
			TeacherName:      f.teachers[subject.TeacherID].Name,
			ClassSectionID:   subject.ClassSectionID,
			ClassSectionName: f.sections[subject.ClassSectionID].Name,
		})
	}
	return out
}

func (f fakeSlots) EntriesForTeacher(ctx context.Context, teacherID string) ([]models.SlotEntry, error) {
	return f.entries(func(s models.Subject) bool { return s.TeacherID == teacherID }), nil
}

func (f fakeSlots) EntriesForClassSection(ctx context.Context, classSectionID string) ([]models.SlotEntry, error) {
	return f.entries(func(s models.Subject) bool { return s.ClassSectionID == classSectionID }), nil
}

type invalidation struct {
	teacherID      string
	classSectionID string
}

type invalidatorSpy struct {
	mu     sync.Mutex
	calls  []invalidation
	scopes []models.TimetableScope
}

func (s *invalidatorSpy) Invalidate(ctx context.Context, teacherID, classSectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, invalidation{teacherID, classSectionID})
}

func (s *invalidatorSpy) InvalidateScope(ctx context.Context, scope models.TimetableScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, scope)
}

func coord(day models.Weekday, period int) models.Coordinate {
	return models.Coordinate{Weekday: day, Period: period}
}
