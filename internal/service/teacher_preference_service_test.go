package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type prefRepoMock struct {
	stored *models.TeacherPreference
	err    error
}

func (m *prefRepoMock) GetByTeacher(_ context.Context, _ string) (*models.TeacherPreference, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stored == nil {
		return nil, sql.ErrNoRows
	}
	cp := *m.stored
	return &cp, nil
}

// Upsert mimics the RETURNING clause: an existing row keeps its id.
func (m *prefRepoMock) Upsert(_ context.Context, pref *models.TeacherPreference) error {
	pref.ID = "pref-1"
	if m.stored != nil {
		pref.ID = m.stored.ID
		pref.CreatedAt = m.stored.CreatedAt
	}
	cp := *pref
	m.stored = &cp
	return nil
}

func TestTeacherPreferenceServiceGetDefault(t *testing.T) {
	svc := NewTeacherPreferenceService(newMockTeacherRepo(models.Teacher{ID: "t1"}), &prefRepoMock{}, nil, nil)

	pref, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, pref.MaxLoadPerDay)
	assert.Equal(t, types.JSONText("[]"), pref.Unavailable)

	_, err = svc.Get(context.Background(), "ghost")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherPreferenceServiceUpsertNormalizesWindows(t *testing.T) {
	repo := &prefRepoMock{}
	svc := NewTeacherPreferenceService(newMockTeacherRepo(models.Teacher{ID: "t1"}), repo, nil, nil)

	pref, err := svc.Upsert(context.Background(), "t1", UpsertTeacherPreferenceRequest{
		MaxLoadPerDay:  2,
		MaxLoadPerWeek: 6,
		Unavailable:    []models.TeacherUnavailableSlot{{DayOfWeek: " monday", TimeRange: " 2-4 "}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.JSONEq(t, `[{"day_of_week":"MONDAY","time_range":"2-4"}]`, string(repo.stored.Unavailable))
	assert.Equal(t, []int{2, 3, 4}, repo.stored.BlockedPeriods("MONDAY"))

	again, err := svc.Upsert(context.Background(), "t1", UpsertTeacherPreferenceRequest{MaxLoadPerDay: 1})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", again.ID)
	assert.JSONEq(t, `[]`, string(again.Unavailable))
}

func TestTeacherPreferenceServiceUpsertRejects(t *testing.T) {
	svc := NewTeacherPreferenceService(newMockTeacherRepo(models.Teacher{ID: "t1"}), &prefRepoMock{}, nil, nil)

	cases := map[string]UpsertTeacherPreferenceRequest{
		"negative load":   {MaxLoadPerDay: -1},
		"day over week":   {MaxLoadPerDay: 5, MaxLoadPerWeek: 3},
		"unknown weekday": {Unavailable: []models.TeacherUnavailableSlot{{DayOfWeek: "Funday", TimeRange: "1"}}},
		"reversed range":  {Unavailable: []models.TeacherUnavailableSlot{{DayOfWeek: "MONDAY", TimeRange: "4-2"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), "t1", req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}
