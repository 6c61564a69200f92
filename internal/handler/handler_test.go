package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meu-horario-api/internal/dto"
	"github.com/noah-isme/meu-horario-api/internal/middleware"
	"github.com/noah-isme/meu-horario-api/internal/models"
	"github.com/noah-isme/meu-horario-api/internal/service"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type subjectServiceMock struct {
	createResp *dto.SubjectAllocationResponse
	createErr  error
}

func (m *subjectServiceMock) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	return nil, nil, nil
}

func (m *subjectServiceMock) Get(ctx context.Context, id string) (*models.SubjectDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
}

func (m *subjectServiceMock) Create(ctx context.Context, req dto.CreateSubjectRequest) (*dto.SubjectAllocationResponse, error) {
	return m.createResp, m.createErr
}

func (m *subjectServiceMock) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*dto.SubjectAllocationResponse, error) {
	return m.createResp, m.createErr
}

func (m *subjectServiceMock) Delete(ctx context.Context, id string) error { return nil }

type allocatorMock struct {
	result *dto.AllocationResult
	err    error
	called string
}

func (m *allocatorMock) Allocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error) {
	m.called = "allocate:" + subjectID
	return m.result, m.err
}

func (m *allocatorMock) Reallocate(ctx context.Context, subjectID string) (*dto.AllocationResult, error) {
	m.called = "reallocate:" + subjectID
	return m.result, m.err
}

func TestSubjectHandlerCreateWarnsOnPartialAllocation(t *testing.T) {
	svc := &subjectServiceMock{createResp: &dto.SubjectAllocationResponse{
		Subject:    models.Subject{ID: "sub-1", Name: "Matemática", WeeklySlots: 4},
		Allocation: &dto.AllocationResult{SubjectID: "sub-1", Requested: 4, Allocated: 3},
	}}
	h := NewSubjectHandler(svc, &allocatorMock{})

	payload, _ := json.Marshal(dto.CreateSubjectRequest{Name: "Matemática", WeeklySlots: 4, TeacherID: "t-1", ClassSectionID: "c-1"})
	c, w := newGinContext(http.MethodPost, "/subjects", payload)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, partialAllocationWarning, env.Meta["warning"])
}

func TestSubjectHandlerCreateWithoutWarning(t *testing.T) {
	svc := &subjectServiceMock{createResp: &dto.SubjectAllocationResponse{
		Subject:    models.Subject{ID: "sub-1", Name: "Biologia", WeeklySlots: 2},
		Allocation: &dto.AllocationResult{SubjectID: "sub-1", Requested: 2, Allocated: 2, Success: true},
	}}
	h := NewSubjectHandler(svc, &allocatorMock{})

	payload, _ := json.Marshal(dto.CreateSubjectRequest{Name: "Biologia", WeeklySlots: 2, TeacherID: "t-1", ClassSectionID: "c-1"})
	c, w := newGinContext(http.MethodPost, "/subjects", payload)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, decode(t, w).Meta)
}

func TestSubjectHandlerCreateRejectsMalformedBody(t *testing.T) {
	h := NewSubjectHandler(&subjectServiceMock{}, &allocatorMock{})
	c, w := newGinContext(http.MethodPost, "/subjects", []byte("{"))
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)
}

func TestSubjectHandlerAllocateOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		result dto.AllocationResult
		status int
	}{
		{"missing subject", dto.AllocationResult{SubjectID: "sub-x", Reason: dto.ReasonSubjectNotFound}, http.StatusNotFound},
		{"already allocated", dto.AllocationResult{SubjectID: "sub-1", Requested: 2, Reason: dto.ReasonAlreadyAllocated}, http.StatusOK},
		{"full", dto.AllocationResult{SubjectID: "sub-1", Requested: 2, Allocated: 2, Success: true}, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.result
			alloc := &allocatorMock{result: &result}
			h := NewSubjectHandler(&subjectServiceMock{}, alloc)

			c, w := newGinContext(http.MethodPost, "/subjects/"+result.SubjectID+"/allocate", nil)
			c.Params = gin.Params{{Key: "id", Value: result.SubjectID}}
			h.Allocate(c)

			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, "allocate:"+result.SubjectID, alloc.called)
		})
	}
}

func TestSubjectHandlerNotFoundCarriesReason(t *testing.T) {
	alloc := &allocatorMock{result: &dto.AllocationResult{SubjectID: "sub-x", Reason: dto.ReasonSubjectNotFound}}
	h := NewSubjectHandler(&subjectServiceMock{}, alloc)

	c, w := newGinContext(http.MethodPost, "/subjects/sub-x/reallocate", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-x"}}
	h.Reallocate(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(dto.ReasonSubjectNotFound), env.Error.Details["reason"])
	assert.Equal(t, "reallocate:sub-x", alloc.called)
}

type slotServiceMock struct {
	createErr error
}

func (m *slotServiceMock) List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, error) {
	return []models.Slot{}, nil
}

func (m *slotServiceMock) Get(ctx context.Context, id string) (*models.Slot, error) {
	return &models.Slot{ID: id}, nil
}

func (m *slotServiceMock) Create(ctx context.Context, req dto.CreateSlotRequest) (*models.Slot, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Slot{ID: "slot-1", SubjectID: req.SubjectID}, nil
}

func (m *slotServiceMock) Update(ctx context.Context, id string, req dto.MoveRequest) (*models.Slot, error) {
	return &models.Slot{ID: id}, nil
}

func (m *slotServiceMock) Delete(ctx context.Context, id string) error { return nil }

func TestSlotHandlerCreateConflict(t *testing.T) {
	conflict := appErrors.Clone(appErrors.ErrConflict, "teacher already teaches at this time").
		WithDetail("dimension", service.DimensionTeacher)
	h := NewSlotHandler(&slotServiceMock{createErr: conflict})

	payload, _ := json.Marshal(dto.CreateSlotRequest{SubjectID: "sub-1", Weekday: "MON", Period: 1})
	c, w := newGinContext(http.MethodPost, "/slots", payload)
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, service.DimensionTeacher, env.Error.Details["dimension"])
}

func TestSlotHandlerDelete(t *testing.T) {
	h := NewSlotHandler(&slotServiceMock{})
	c, w := newGinContext(http.MethodDelete, "/slots/slot-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "slot-1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
}

type timetableServiceMock struct {
	cached bool
	scope  models.TimetableScope
}

func (m *timetableServiceMock) Get(ctx context.Context, scope models.TimetableScope, id string) (*models.Timetable, bool, error) {
	m.scope = scope
	return &models.Timetable{Scope: scope, TargetID: id, TargetName: "1º Ano A"}, m.cached, nil
}

func TestTimetableHandlerReportsCacheHit(t *testing.T) {
	svc := &timetableServiceMock{cached: true}
	h := NewTimetableHandler(svc)

	c, w := newGinContext(http.MethodGet, "/class-sections/c-1/timetable", nil)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	h.ClassSection(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ScopeClassSection, svc.scope)
	assert.Equal(t, true, decode(t, w).Meta["cache_hit"])
}

func TestTimetableHandlerTeacherScope(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc)

	c, w := newGinContext(http.MethodGet, "/teachers/t-1/timetable", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	h.Teacher(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ScopeTeacher, svc.scope)
	assert.Equal(t, false, decode(t, w).Meta["cache_hit"])
}

type teacherServiceMock struct{}

func (teacherServiceMock) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	return []models.Teacher{{ID: "t-1", Name: "Maria Silva"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (teacherServiceMock) Get(ctx context.Context, id string) (*models.TeacherDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
}

func (teacherServiceMock) Create(ctx context.Context, req service.CreateTeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: "t-1", Name: req.Name}, nil
}

func (teacherServiceMock) Update(ctx context.Context, id string, req service.UpdateTeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: id}, nil
}

func (teacherServiceMock) Delete(ctx context.Context, id string) (*service.TeacherDeletion, error) {
	return &service.TeacherDeletion{TeacherID: id, Slots: 3, Subjects: 2, Availabilities: 2}, nil
}

func TestTeacherHandlerListPaginates(t *testing.T) {
	h := NewTeacherHandler(teacherServiceMock{})
	c, w := newGinContext(http.MethodGet, "/teachers?page=2&limit=5", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestTeacherHandlerGetMissing(t *testing.T) {
	h := NewTeacherHandler(teacherServiceMock{})
	c, w := newGinContext(http.MethodGet, "/teachers/t-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-9"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeacherHandlerDeleteReportsCascade(t *testing.T) {
	h := NewTeacherHandler(teacherServiceMock{})
	c, w := newGinContext(http.MethodDelete, "/teachers/t-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	h.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	var deletion service.TeacherDeletion
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &deletion))
	assert.Equal(t, int64(3), deletion.Slots)
	assert.Equal(t, int64(2), deletion.Subjects)
}

type exportServiceMock struct {
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportStatusResponse
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	return m.statusResp, nil
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreateAccepted(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{createResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}})
	payload, _ := json.Marshal(dto.ExportRequest{Scope: models.ScopeClassSection, TargetID: "c-1", Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	h.Create(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	url := "/api/v1/exports/download/token"
	h := NewExportHandler(&exportServiceMock{statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, ResultURL: &url}})
	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), url)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class_section.csv")
	require.NoError(t, os.WriteFile(path, []byte("Period,MON\n1,Biologia\n"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	h := NewExportHandler(&exportServiceMock{download: &service.ExportDownload{
		File:      file,
		Size:      22,
		Filename:  "class_section.csv",
		Format:    models.ExportFormatCSV,
		ExpiresAt: time.Now().Add(time.Hour),
	}})
	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="class_section.csv"`)
	assert.Equal(t, "Period,MON\n1,Biologia\n", w.Body.String())
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	h := NewExportHandler(&exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "download token expired")})
	c, w := newGinContext(http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	h.Download(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	}, nil)
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, nil)
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unavailable"`)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	h := NewMetricsHandler(metrics, nil, nil)
	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_hit_ratio")
}

func TestWithResponseMetaAddsProcessingTime(t *testing.T) {
	c, _ := newGinContext(http.MethodGet, "/", nil)
	middleware.SetWarning(c, "heads up")
	assert.Equal(t, "heads up", middleware.ExtractMeta(c)["warning"])
}
