package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/pkg/export"
	"github.com/noah-isme/meu-horario-api/pkg/storage"
)

type timetableReader interface {
	Get(ctx context.Context, scope models.TimetableScope, id string) (*models.Timetable, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, int64, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders timetables to files and signs download links.
type ExportService struct {
	timetables timetableReader
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

func NewExportService(timetables timetableReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(',')
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		storage:    files,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate renders the job's timetable and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	table, _, err := s.timetables.Get(ctx, job.Params.Scope, job.Params.TargetID)
	if err != nil {
		return nil, err
	}
	dataset := TimetableDataset(table)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, timetableTitle(table))
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, table), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

func (s *ExportService) Open(relPath string) (*os.File, int64, error) {
	return s.storage.Open(relPath)
}

func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, table *models.Timetable) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Params.Scope, sanitizeFilename(table.TargetName), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func timetableTitle(table *models.Timetable) string {
	if table.Scope == models.ScopeTeacher {
		return "Professor " + table.TargetName
	}
	return "Turma " + table.TargetName
}

// TimetableDataset turns a grid into one row per period and one column per
// weekday. Cells name the subject plus the counterpart (class section for a
// teacher's grid, teacher for a class section's grid); overlapping entries are
// joined with " / ".
func TimetableDataset(table *models.Timetable) export.Dataset {
	headers := []string{"Period"}
	for _, day := range table.Days {
		headers = append(headers, string(day.Weekday))
	}
	rows := make([]map[string]string, 0, models.LastPeriod)
	for p := 0; p < models.LastPeriod; p++ {
		row := map[string]string{"Period": strconv.Itoa(p + models.FirstPeriod)}
		for _, day := range table.Days {
			if p >= len(day.Periods) {
				row[string(day.Weekday)] = ""
				continue
			}
			labels := make([]string, 0, len(day.Periods[p].Entries))
			for _, entry := range day.Periods[p].Entries {
				other := entry.TeacherName
				if table.Scope == models.ScopeTeacher {
					other = entry.ClassSectionName
				}
				labels = append(labels, entry.SubjectName+" ("+other+")")
			}
			row[string(day.Weekday)] = strings.Join(labels, " / ")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
