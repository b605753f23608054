package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	"github.com/noah-isme/sma-coverage-api/internal/service"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type teacherServiceMock struct {
	filter      models.TeacherFilter
	created     service.CreateTeacherRequest
	deactivated string
	err         error
}

func (m *teacherServiceMock) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	m.filter = filter
	return []models.Teacher{{ID: "t1"}}, m.err
}

func (m *teacherServiceMock) Get(_ context.Context, id string) (*models.Teacher, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Teacher{ID: id}, nil
}

func (m *teacherServiceMock) Create(_ context.Context, req service.CreateTeacherRequest) (*models.Teacher, error) {
	m.created = req
	return &models.Teacher{ID: "t-new", Email: req.Email}, m.err
}

func (m *teacherServiceMock) Deactivate(_ context.Context, id string) error {
	m.deactivated = id
	return m.err
}

type preferenceServiceMock struct {
	teacherID string
	req       service.UpsertTeacherPreferenceRequest
}

func (m *preferenceServiceMock) Get(_ context.Context, teacherID string) (*models.TeacherPreference, error) {
	m.teacherID = teacherID
	return &models.TeacherPreference{TeacherID: teacherID}, nil
}

func (m *preferenceServiceMock) Upsert(_ context.Context, teacherID string, req service.UpsertTeacherPreferenceRequest) (*models.TeacherPreference, error) {
	m.teacherID = teacherID
	m.req = req
	return &models.TeacherPreference{TeacherID: teacherID, MaxLoadPerDay: req.MaxLoadPerDay}, nil
}

type scheduleServiceMock struct {
	filter models.ScheduleFilter
	bulk   service.BulkCreateSchedulesRequest
	err    error
}

func (m *scheduleServiceMock) List(_ context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	m.filter = filter
	return []models.Schedule{}, nil
}

func (m *scheduleServiceMock) Create(_ context.Context, req service.CreateScheduleRequest) (*models.Schedule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Schedule{ID: "sch-1", TeacherID: req.TeacherID}, nil
}

func (m *scheduleServiceMock) BulkCreate(_ context.Context, req service.BulkCreateSchedulesRequest) (*service.BulkCreateSchedulesResult, error) {
	m.bulk = req
	return &service.BulkCreateSchedulesResult{}, m.err
}

func (m *scheduleServiceMock) Delete(context.Context, string) error { return m.err }

type absenceServiceMock struct {
	reported service.ReportAbsenceRequest
	date     string
	err      error
}

func (m *absenceServiceMock) Report(_ context.Context, req service.ReportAbsenceRequest) (*models.Absence, error) {
	m.reported = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Absence{ID: "abs-1", TeacherID: req.TeacherID, Status: models.AbsenceStatusPending}, nil
}

func (m *absenceServiceMock) ListByDate(_ context.Context, date string) ([]models.Absence, error) {
	m.date = date
	return []models.Absence{}, m.err
}

type substituteServiceMock struct {
	created service.CreateSubstituteRequest
}

func (m *substituteServiceMock) ListActive(context.Context) ([]models.Substitute, error) {
	return []models.Substitute{{ID: "sub-1"}}, nil
}

func (m *substituteServiceMock) Get(_ context.Context, id string) (*models.Substitute, error) {
	if id != "sub-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute not found")
	}
	return &models.Substitute{ID: id}, nil
}

func (m *substituteServiceMock) Create(_ context.Context, req service.CreateSubstituteRequest) (*models.Substitute, error) {
	m.created = req
	return &models.Substitute{ID: "sub-new"}, nil
}

type rosterMocks struct {
	teachers    *teacherServiceMock
	prefs       *preferenceServiceMock
	schedules   *scheduleServiceMock
	absences    *absenceServiceMock
	substitutes *substituteServiceMock
}

func rosterRouter() (*gin.Engine, *rosterMocks) {
	gin.SetMode(gin.TestMode)
	m := &rosterMocks{
		teachers:    &teacherServiceMock{},
		prefs:       &preferenceServiceMock{},
		schedules:   &scheduleServiceMock{},
		absences:    &absenceServiceMock{},
		substitutes: &substituteServiceMock{},
	}
	teachers := NewTeacherHandler(m.teachers, m.prefs)
	schedules := NewScheduleHandler(m.schedules)
	roster := NewRosterHandler(m.absences, m.substitutes)

	router := gin.New()
	router.GET("/teachers", teachers.List)
	router.POST("/teachers", teachers.Create)
	router.GET("/teachers/:id", teachers.Get)
	router.DELETE("/teachers/:id", teachers.Delete)
	router.GET("/teachers/:id/preferences", teachers.GetPreferences)
	router.PUT("/teachers/:id/preferences", teachers.UpsertPreferences)
	router.GET("/schedules", schedules.List)
	router.POST("/schedules", schedules.Create)
	router.POST("/schedules/bulk", schedules.BulkCreate)
	router.DELETE("/schedules/:id", schedules.Delete)
	router.POST("/absences", roster.ReportAbsence)
	router.GET("/absences", roster.ListAbsences)
	router.GET("/substitutes", roster.ListSubstitutes)
	router.GET("/substitutes/:id", roster.GetSubstitute)
	router.POST("/substitutes", roster.CreateSubstitute)
	return router, m
}

func TestTeacherHandlerRoutes(t *testing.T) {
	router, m := rosterRouter()

	rec := doJSON(router, http.MethodGet, "/teachers?active=true&canCover=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, m.teachers.filter.Active)
	assert.True(t, *m.teachers.filter.Active)
	require.NotNil(t, m.teachers.filter.CanCover)
	assert.False(t, *m.teachers.filter.CanCover)

	rec = doJSON(router, http.MethodPost, "/teachers", map[string]interface{}{"email": "a@b.id", "full_name": "A", "can_cover": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, m.teachers.created.CanCover)

	rec = doJSON(router, http.MethodDelete, "/teachers/t9", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "t9", m.teachers.deactivated)

	rec = doJSON(router, http.MethodPut, "/teachers/t1/preferences", map[string]interface{}{"max_load_per_day": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", m.prefs.teacherID)
	assert.Equal(t, 2, m.prefs.req.MaxLoadPerDay)
}

func TestTeacherHandlerNotFound(t *testing.T) {
	router, m := rosterRouter()
	m.teachers.err = appErrors.Clone(appErrors.ErrNotFound, "teacher not found")

	rec := doJSON(router, http.MethodGet, "/teachers/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleHandlerRoutes(t *testing.T) {
	router, m := rosterRouter()

	rec := doJSON(router, http.MethodGet, "/schedules?teacherId=t1&dayOfWeek=monday&dayType=b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ScheduleFilter{TeacherID: "t1", DayOfWeek: "MONDAY", DayType: "B"}, m.schedules.filter)

	rec = doJSON(router, http.MethodPost, "/schedules/bulk", map[string]interface{}{
		"partial_on_error": true,
		"items":            []map[string]interface{}{{"teacher_id": "t1", "period": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, m.schedules.bulk.PartialOnError)
	require.Len(t, m.schedules.bulk.Items, 1)

	m.schedules.err = appErrors.Clone(appErrors.ErrConflict, "schedule conflict")
	rec = doJSON(router, http.MethodPost, "/schedules", map[string]interface{}{"teacher_id": "t1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRosterHandlerAbsences(t *testing.T) {
	router, m := rosterRouter()

	rec := doJSON(router, http.MethodPost, "/absences", map[string]interface{}{"teacher_id": "t1", "date": "2025-03-03", "periods": []int{1, 2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int{1, 2}, m.absences.reported.Periods)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = doJSON(router, http.MethodGet, "/absences", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(router, http.MethodGet, "/absences?date=2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-03", m.absences.date)
}

func TestRosterHandlerSubstitutes(t *testing.T) {
	router, m := rosterRouter()

	rec := doJSON(router, http.MethodGet, "/substitutes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sub-1")

	rec = doJSON(router, http.MethodGet, "/substitutes/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(router, http.MethodPost, "/substitutes", map[string]interface{}{
		"full_name":    "Citra",
		"email":        "c@subs.id",
		"availability": map[string][]int{"MONDAY": {1, 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int{1, 2}, m.substitutes.created.Availability["MONDAY"])
}
