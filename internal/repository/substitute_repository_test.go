package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

func TestSubstituteRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubstituteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "specialties", "availability", "max_daily_load", "max_weekly_load", "specialty_only", "emergency_only", "active", "created_at", "updated_at"}).
		AddRow("sub-1", "Sam Sub", "sam@example.com", nil, `{Chemistry}`, `{"MONDAY":[1,2,3]}`, 4, 12, false, false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM substitutes WHERE active = TRUE ORDER BY id ASC")).
		WillReturnRows(rows)

	subs, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)

	availability, err := subs[0].AvailabilityByDay()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, availability["MONDAY"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstituteRepositoryWeeklyLoads(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubstituteRepository(db)

	rows := sqlmock.NewRows([]string{"substitute_id", "periods"}).
		AddRow("sub-1", 6).
		AddRow("sub-2", 2)
	mock.ExpectQuery("FROM coverage_assignments").
		WithArgs("2025-03-03", "2025-03-05").
		WillReturnRows(rows)

	loads, err := repo.WeeklyLoads(context.Background(), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"sub-1": 6, "sub-2": 2}, loads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstituteAvailabilityRejectsMalformedDocument(t *testing.T) {
	sub := models.Substitute{ID: "sub-1", Availability: []byte(`[1,2]`)}
	_, err := sub.AvailabilityByDay()
	require.Error(t, err)
}
