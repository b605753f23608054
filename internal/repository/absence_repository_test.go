package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

func TestAbsenceRepositoryListByDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRepository(db)

	date := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "absence_date", "day_type", "periods_needed", "reason", "status", "created_at", "updated_at"}).
		AddRow("abs-1", "teacher-1", date, "A", `{2,3}`, nil, "PENDING", date, date)
	mock.ExpectQuery(regexp.QuoteMeta("FROM absences WHERE absence_date = $1 ORDER BY id ASC")).
		WithArgs("2025-03-03").
		WillReturnRows(rows)

	list, err := repo.ListByDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pq.Int64Array{2, 3}, list[0].PeriodsNeeded)
	assert.Equal(t, models.AbsenceStatusPending, list[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRepositoryCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRepository(db)

	mock.ExpectExec("INSERT INTO absences").
		WithArgs(sqlmock.AnyArg(), "teacher-1", sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg(), models.AbsenceStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	absence := &models.Absence{TeacherID: "teacher-1", AbsenceDate: time.Now()}
	require.NoError(t, repo.Create(context.Background(), absence))
	assert.NotEmpty(t, absence.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRepositoryUpdateStatusesInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAbsenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE absences SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.AbsenceStatusResolved, sqlmock.AnyArg(), "abs-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE absences SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.AbsenceStatusUnresolved, sqlmock.AnyArg(), "abs-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.UpdateStatuses(context.Background(), tx, []models.AbsenceStatusUpdate{
		{ID: "abs-1", Status: models.AbsenceStatusResolved},
		{ID: "abs-2", Status: models.AbsenceStatusUnresolved},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
