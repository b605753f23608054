package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type scheduleRepoMock struct {
	rows     []models.Schedule
	created  []models.Schedule
	bulk     []models.Schedule
	deleted  []string
	listErr  error
	listCall int
}

func (m *scheduleRepoMock) List(_ context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	m.listCall++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.Schedule
	for _, row := range m.rows {
		if filter.TeacherID != "" && row.TeacherID != filter.TeacherID {
			continue
		}
		if filter.DayOfWeek != "" && row.DayOfWeek != filter.DayOfWeek {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *scheduleRepoMock) Create(_ context.Context, schedule *models.Schedule) error {
	schedule.ID = "sch-new"
	m.created = append(m.created, *schedule)
	return nil
}

func (m *scheduleRepoMock) BulkCreate(_ context.Context, schedules []models.Schedule) error {
	m.bulk = append(m.bulk, schedules...)
	return nil
}

func (m *scheduleRepoMock) Delete(_ context.Context, id string) error {
	if id == "missing" {
		return sql.ErrNoRows
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func scheduleRequest(teacher string, period int, dayType string) CreateScheduleRequest {
	return CreateScheduleRequest{
		ClassID:   "X-1",
		SubjectID: "math",
		TeacherID: teacher,
		DayOfWeek: "monday",
		DayType:   dayType,
		Period:    period,
		Room:      "R1",
	}
}

func TestScheduleServiceCreate(t *testing.T) {
	repo := &scheduleRepoMock{}
	svc := NewScheduleService(repo, nil, nil)

	row, err := svc.Create(context.Background(), scheduleRequest("t1", 2, "a"))
	require.NoError(t, err)
	assert.Equal(t, "sch-new", row.ID)
	assert.Equal(t, "MONDAY", row.DayOfWeek)
	assert.Equal(t, "A", row.DayType)
	assert.True(t, row.IsTeaching)
}

func TestScheduleServiceCreateConflicts(t *testing.T) {
	repo := &scheduleRepoMock{rows: []models.Schedule{
		{ID: "a-only", TeacherID: "t1", DayOfWeek: "MONDAY", DayType: "A", Period: 1},
		{ID: "both", TeacherID: "t1", DayOfWeek: "MONDAY", Period: 3},
	}}
	svc := NewScheduleService(repo, nil, nil)

	_, err := svc.Create(context.Background(), scheduleRequest("t1", 1, "B"))
	require.NoError(t, err, "B row does not clash with an A-only row")

	_, err = svc.Create(context.Background(), scheduleRequest("t1", 1, ""))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	var conflict *ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "a-only", conflict.Conflicts[0].ExistingID)

	_, err = svc.Create(context.Background(), scheduleRequest("t1", 3, "A"))
	require.Error(t, err)
}

func TestScheduleServiceCreateValidation(t *testing.T) {
	svc := NewScheduleService(&scheduleRepoMock{}, nil, nil)

	req := scheduleRequest("t1", 1, "")
	req.DayOfWeek = "Someday"
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), scheduleRequest("t1", 0, ""))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), scheduleRequest("t1", 1, "C"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceBulkCreate(t *testing.T) {
	repo := &scheduleRepoMock{rows: []models.Schedule{{ID: "old", TeacherID: "t1", DayOfWeek: "MONDAY", Period: 1}}}
	svc := NewScheduleService(repo, nil, nil)

	items := []CreateScheduleRequest{
		scheduleRequest("t1", 1, ""),
		scheduleRequest("t1", 2, ""),
		scheduleRequest("t1", 2, "A"),
		scheduleRequest("t2", 2, ""),
	}

	_, err := svc.BulkCreate(context.Background(), BulkCreateSchedulesRequest{Items: items})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.bulk)

	result, err := svc.BulkCreate(context.Background(), BulkCreateSchedulesRequest{Items: items, PartialOnError: true})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Len(t, result.Conflicts, 2)
	assert.Equal(t, 0, result.Conflicts[0].Index)
	assert.Equal(t, "old", result.Conflicts[0].ExistingID)
	assert.Equal(t, 2, result.Conflicts[1].Index)
	assert.Len(t, repo.bulk, 2)
}

func TestScheduleServiceListAndDelete(t *testing.T) {
	repo := &scheduleRepoMock{}
	svc := NewScheduleService(repo, nil, nil)

	rows, err := svc.List(context.Background(), models.ScheduleFilter{TeacherID: "t1"})
	require.NoError(t, err)
	assert.NotNil(t, rows)

	require.NoError(t, svc.Delete(context.Background(), "sch-1"))
	assert.Equal(t, []string{"sch-1"}, repo.deleted)
	assert.Error(t, svc.Delete(context.Background(), " "))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(svc.Delete(context.Background(), "missing")).Code)

	repo.listErr = errors.New("boom")
	_, err = svc.List(context.Background(), models.ScheduleFilter{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
