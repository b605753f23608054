package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type absenceRepoMock struct {
	created []*models.Absence
	byDate  []models.Absence
	asked   time.Time
}

func (m *absenceRepoMock) ListByDate(_ context.Context, date time.Time) ([]models.Absence, error) {
	m.asked = date
	return m.byDate, nil
}

func (m *absenceRepoMock) Create(_ context.Context, absence *models.Absence) error {
	absence.ID = "abs-new"
	m.created = append(m.created, absence)
	return nil
}

func TestAbsenceServiceReport(t *testing.T) {
	repo := &absenceRepoMock{}
	cache := newPlanCacheStub()
	teachers := newMockTeacherRepo(models.Teacher{ID: "t1", Active: true})
	svc := NewAbsenceService(repo, teachers, cache, nil, nil)

	absence, err := svc.Report(context.Background(), ReportAbsenceRequest{
		TeacherID: "t1",
		Date:      "2025-03-03",
		DayType:   "b",
		Periods:   []int{4, 2, 4},
		Reason:    "  medical  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "abs-new", absence.ID)
	assert.Equal(t, models.AbsenceStatusPending, absence.Status)
	assert.Equal(t, "B", absence.DayType)
	assert.Equal(t, pq.Int64Array{2, 4}, absence.PeriodsNeeded)
	require.NotNil(t, absence.Reason)
	assert.Equal(t, "medical", *absence.Reason)
	assert.Equal(t, []string{"coverage:plan:2025-03-03:*"}, cache.invalidated)
}

func TestAbsenceServiceReportRejects(t *testing.T) {
	teachers := newMockTeacherRepo(models.Teacher{ID: "t1", Active: true}, models.Teacher{ID: "gone", Active: false})
	svc := NewAbsenceService(&absenceRepoMock{}, teachers, nil, nil, nil)

	cases := []struct {
		name string
		req  ReportAbsenceRequest
		code string
	}{
		{"bad date", ReportAbsenceRequest{TeacherID: "t1", Date: "03/03/2025"}, appErrors.ErrValidation.Code},
		{"bad period", ReportAbsenceRequest{TeacherID: "t1", Date: "2025-03-03", Periods: []int{0}}, appErrors.ErrValidation.Code},
		{"unknown teacher", ReportAbsenceRequest{TeacherID: "ghost", Date: "2025-03-03"}, appErrors.ErrNotFound.Code},
		{"inactive teacher", ReportAbsenceRequest{TeacherID: "gone", Date: "2025-03-03"}, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Report(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAbsenceServiceListByDate(t *testing.T) {
	repo := &absenceRepoMock{}
	svc := NewAbsenceService(repo, newMockTeacherRepo(), nil, nil, nil)

	list, err := svc.ListByDate(context.Background(), "2025-03-04")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Equal(t, "2025-03-04", repo.asked.Format("2006-01-02"))

	_, err = svc.ListByDate(context.Background(), "tomorrow")
	assert.Error(t, err)
}
