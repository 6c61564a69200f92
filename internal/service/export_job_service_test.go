package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/internal/repository"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
	"github.com/noah-isme/meu-horario-api/pkg/jobs"
)

type memExportJobs struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*models.ExportJob
}

func newMemExportJobs() *memExportJobs {
	return &memExportJobs{jobs: map[string]*models.ExportJob{}}
}

func (m *memExportJobs) Create(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job.ID = fmt.Sprintf("job-%d", m.seq)
	job.CreatedAt = time.Now()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memExportJobs) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (m *memExportJobs) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		job.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		at := *params.FinishedAt
		job.FinishedAt = &at
	}
	return nil
}

func (m *memExportJobs) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memExportJobs) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type dispatcherSpy struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherSpy) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return nil, g.err
}

func TestExportJobLifecycle(t *testing.T) {
	repo := newMemExportJobs()
	queue := &dispatcherSpy{}
	exporter := newExportServiceForTest(t)
	metrics := NewMetricsService()
	svc := NewExportJobService(repo, sampleTimetables(), queue, exporter, nil, nil, ExportJobConfig{})
	worker := NewExportWorker(repo, exporter, metrics, 3, nil)

	created, err := svc.CreateJob(context.Background(), dto.ExportRequest{Scope: models.ScopeClassSection, TargetID: "c1", Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, created.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, created.ID, queue.jobs[0].ID)

	require.NoError(t, worker.Handle(context.Background(), queue.jobs[0]))

	status, err := svc.GetStatus(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.ResultURL)
	assert.Nil(t, status.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.exportJobs.WithLabelValues("csv", "FINISHED")))

	download, err := svc.ResolveDownload(context.Background(), extractToken(*status.ResultURL))
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ExportFormatCSV, download.Format)
	assert.Positive(t, download.Size)

	_, err = svc.ResolveDownload(context.Background(), "job-1.0.x.y")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportJobCreateValidates(t *testing.T) {
	svc := NewExportJobService(newMemExportJobs(), sampleTimetables(), &dispatcherSpy{}, nil, nil, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Scope: "room", TargetID: "c1", Format: models.ExportFormatCSV})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{Scope: models.ScopeTeacher, TargetID: "ghost", Format: models.ExportFormatPDF})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportJobCreateMarksFailedWhenQueueRejects(t *testing.T) {
	repo := newMemExportJobs()
	svc := NewExportJobService(repo, sampleTimetables(), &dispatcherSpy{err: jobs.ErrNotStarted}, nil, nil, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Scope: models.ScopeTeacher, TargetID: "t1", Format: models.ExportFormatPDF})
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportWorkerRetriesThenFails(t *testing.T) {
	repo := newMemExportJobs()
	job := &models.ExportJob{Params: models.ExportJobParams{Scope: models.ScopeTeacher, TargetID: "t1", Format: models.ExportFormatPDF}, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))
	metrics := NewMetricsService()
	worker := NewExportWorker(repo, failingGenerator{err: errors.New("render failed")}, metrics, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)
	stored, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2})
	require.Error(t, err)
	stored, _ = repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.exportJobs.WithLabelValues("pdf", "FAILED")))
}

func TestExportJobStatusNotFound(t *testing.T) {
	svc := NewExportJobService(newMemExportJobs(), sampleTimetables(), &dispatcherSpy{}, nil, nil, nil, ExportJobConfig{})
	_, err := svc.GetStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportJobRecoverPendingJobs(t *testing.T) {
	repo := newMemExportJobs()
	queue := &dispatcherSpy{}
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{Status: models.ExportStatusQueued}))
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{Status: models.ExportStatusFinished}))
	svc := NewExportJobService(repo, sampleTimetables(), queue, nil, nil, nil, ExportJobConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "job-1", queue.jobs[0].ID)
}
