// Package seed loads fixture data through the regular service layer, so
// seeded subjects are allocated exactly like subjects created over HTTP.
package seed

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/internal/service"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the YAML document accepted by Load.
type Fixture struct {
	Teachers      []TeacherFixture `yaml:"teachers"`
	ClassSections []string         `yaml:"classSections"`
	Subjects      []SubjectFixture `yaml:"subjects"`
}

type TeacherFixture struct {
	Name         string              `yaml:"name"`
	Availability []models.Coordinate `yaml:"availability"`
}

type SubjectFixture struct {
	Name         string `yaml:"name"`
	WeeklySlots  int    `yaml:"weeklySlots"`
	Teacher      string `yaml:"teacher"`
	ClassSection string `yaml:"classSection"`
}

// Default returns the fixture bundled with the binary.
func Default() (*Fixture, error) {
	return Load(defaultFixture)
}

// Load decodes a fixture and checks that subjects only reference declared
// teachers and class sections.
func Load(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode seed fixture: %w", err)
	}

	teachers := make(map[string]struct{}, len(fx.Teachers))
	for _, t := range fx.Teachers {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errors.New("seed fixture: teacher without name")
		}
		for _, c := range t.Availability {
			if !c.Valid() {
				return nil, fmt.Errorf("seed fixture: teacher %q has invalid availability %s", t.Name, c)
			}
		}
		teachers[t.Name] = struct{}{}
	}
	sections := make(map[string]struct{}, len(fx.ClassSections))
	for _, name := range fx.ClassSections {
		sections[name] = struct{}{}
	}
	for _, s := range fx.Subjects {
		if _, ok := teachers[s.Teacher]; !ok {
			return nil, fmt.Errorf("seed fixture: subject %q references unknown teacher %q", s.Name, s.Teacher)
		}
		if _, ok := sections[s.ClassSection]; !ok {
			return nil, fmt.Errorf("seed fixture: subject %q references unknown class section %q", s.Name, s.ClassSection)
		}
		if s.WeeklySlots < 1 {
			return nil, fmt.Errorf("seed fixture: subject %q needs at least one weekly slot", s.Name)
		}
	}
	return &fx, nil
}

type teacherLookup interface {
	FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Teacher, error)
}

type teacherCreator interface {
	Create(ctx context.Context, req service.CreateTeacherRequest) (*models.Teacher, error)
}

type availabilityWriter interface {
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.Availability, error)
	Create(ctx context.Context, req dto.CreateAvailabilityRequest) (*models.Availability, error)
}

type classSectionLookup interface {
	FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.ClassSection, error)
}

type classSectionCreator interface {
	Create(ctx context.Context, req service.ClassSectionRequest) (*models.ClassSection, error)
}

type subjectWriter interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectAllocationResponse, error)
}

// Params groups Seeder collaborators.
type Params struct {
	TeacherLookup      teacherLookup
	Teachers           teacherCreator
	Availability       availabilityWriter
	ClassSectionLookup classSectionLookup
	ClassSections      classSectionCreator
	Subjects           subjectWriter
	Logger             *zap.Logger
}

// Seeder applies fixtures idempotently: records are matched by name and only
// missing ones are created.
type Seeder struct {
	p      Params
	logger *zap.Logger
}

func New(p Params) *Seeder {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{p: p, logger: logger}
}

// Report counts what a run created.
type Report struct {
	Teachers      int                    `json:"teachers"`
	Availability  int                    `json:"availability"`
	ClassSections int                    `json:"classSections"`
	Subjects      int                    `json:"subjects"`
	Allocations   []dto.AllocationResult `json:"allocations"`
}

func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (*Report, error) {
	report := &Report{}
	teacherIDs := make(map[string]string, len(fx.Teachers))
	for _, tf := range fx.Teachers {
		teacher, created, err := s.teacher(ctx, tf.Name)
		if err != nil {
			return report, err
		}
		if created {
			report.Teachers++
		}
		teacherIDs[tf.Name] = teacher.ID

		n, err := s.availability(ctx, teacher.ID, tf.Availability)
		if err != nil {
			return report, err
		}
		report.Availability += n
	}

	sectionIDs := make(map[string]string, len(fx.ClassSections))
	for _, name := range fx.ClassSections {
		section, created, err := s.classSection(ctx, name)
		if err != nil {
			return report, err
		}
		if created {
			report.ClassSections++
		}
		sectionIDs[name] = section.ID
	}

	for _, sf := range fx.Subjects {
		teacherID, sectionID := teacherIDs[sf.Teacher], sectionIDs[sf.ClassSection]
		exists, err := s.subjectExists(ctx, sf.Name, teacherID, sectionID)
		if err != nil {
			return report, err
		}
		if exists {
			continue
		}
		resp, err := s.p.Subjects.Create(ctx, dto.CreateSubjectRequest{
			Name:           sf.Name,
			WeeklySlots:    sf.WeeklySlots,
			TeacherID:      teacherID,
			ClassSectionID: sectionID,
		})
		if err != nil {
			return report, fmt.Errorf("seed subject %q: %w", sf.Name, err)
		}
		report.Subjects++
		if resp.Allocation != nil {
			report.Allocations = append(report.Allocations, *resp.Allocation)
			if resp.Allocation.Partial() {
				s.logger.Warn("seeded subject partially allocated",
					zap.String("subject", sf.Name),
					zap.Int("requested", resp.Allocation.Requested),
					zap.Int("allocated", resp.Allocation.Allocated))
			}
		}
	}

	s.logger.Info("seed applied",
		zap.Int("teachers", report.Teachers),
		zap.Int("availability", report.Availability),
		zap.Int("class_sections", report.ClassSections),
		zap.Int("subjects", report.Subjects))
	return report, nil
}

func (s *Seeder) teacher(ctx context.Context, name string) (*models.Teacher, bool, error) {
	existing, err := s.p.TeacherLookup.FindByName(ctx, nil, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup teacher %q: %w", name, err)
	}
	created, err := s.p.Teachers.Create(ctx, service.CreateTeacherRequest{Name: name})
	if err != nil {
		return nil, false, fmt.Errorf("seed teacher %q: %w", name, err)
	}
	return created, true, nil
}

func (s *Seeder) availability(ctx context.Context, teacherID string, cells []models.Coordinate) (int, error) {
	current, err := s.p.Availability.List(ctx, models.AvailabilityFilter{TeacherID: teacherID})
	if err != nil {
		return 0, fmt.Errorf("list availability: %w", err)
	}
	have := make(map[models.Coordinate]struct{}, len(current))
	for _, a := range current {
		have[a.Coordinate()] = struct{}{}
	}
	created := 0
	for _, cell := range cells {
		if _, ok := have[cell]; ok {
			continue
		}
		if _, err := s.p.Availability.Create(ctx, dto.CreateAvailabilityRequest{
			TeacherID: teacherID,
			Weekday:   string(cell.Weekday),
			Period:    cell.Period,
		}); err != nil {
			return created, fmt.Errorf("seed availability %s: %w", cell, err)
		}
		have[cell] = struct{}{}
		created++
	}
	return created, nil
}

func (s *Seeder) classSection(ctx context.Context, name string) (*models.ClassSection, bool, error) {
	existing, err := s.p.ClassSectionLookup.FindByName(ctx, nil, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup class section %q: %w", name, err)
	}
	created, err := s.p.ClassSections.Create(ctx, service.ClassSectionRequest{Name: name})
	if err != nil {
		return nil, false, fmt.Errorf("seed class section %q: %w", name, err)
	}
	return created, true, nil
}

func (s *Seeder) subjectExists(ctx context.Context, name, teacherID, sectionID string) (bool, error) {
	subjects, _, err := s.p.Subjects.List(ctx, models.SubjectFilter{
		Search:         name,
		TeacherID:      teacherID,
		ClassSectionID: sectionID,
		Page:           1,
		PageSize:       100,
	})
	if err != nil {
		return false, fmt.Errorf("list subjects: %w", err)
	}
	for _, subject := range subjects {
		if strings.EqualFold(subject.Name, name) {
			return true, nil
		}
	}
	return false, nil
}
