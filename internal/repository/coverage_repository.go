package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const coverageAssignmentColumns = "id, run_id, absence_id, teacher_id, coverage_date, day_type, period, period_label, subject, room, candidate_id, candidate_name, candidate_kind, match_quality, decided_at, created_at"

// CoverageAssignmentRepository persists committed coverage decisions.
type CoverageAssignmentRepository struct {
	db *sqlx.DB
}

// NewCoverageAssignmentRepository constructs the repository.
func NewCoverageAssignmentRepository(db *sqlx.DB) *CoverageAssignmentRepository {
	return &CoverageAssignmentRepository{db: db}
}

// ListByDate returns the stored assignments for a date ordered by absence and period.
func (r *CoverageAssignmentRepository) ListByDate(ctx context.Context, date time.Time) ([]models.CoverageAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM coverage_assignments WHERE coverage_date = $1 ORDER BY absence_id ASC, period ASC", coverageAssignmentColumns)
	var assignments []models.CoverageAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list coverage assignments: %w", err)
	}
	return assignments, nil
}

// ReplaceForDate deletes the date's assignments and inserts the new set using
// the caller's executor.
func (r *CoverageAssignmentRepository) ReplaceForDate(ctx context.Context, exec sqlx.ExtContext, date time.Time, assignments []models.CoverageAssignment) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM coverage_assignments WHERE coverage_date = $1`, date.Format("2006-01-02")); err != nil {
		return fmt.Errorf("clear coverage assignments: %w", err)
	}
	now := time.Now().UTC()
	for i := range assignments {
		payload := assignments[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO coverage_assignments (id, run_id, absence_id, teacher_id, coverage_date, day_type, period, period_label, subject, room, candidate_id, candidate_name, candidate_kind, match_quality, decided_at, created_at)
			VALUES (:id, :run_id, :absence_id, :teacher_id, :coverage_date, :day_type, :period, :period_label, :subject, :room, :candidate_id, :candidate_name, :candidate_kind, :match_quality, :decided_at, :created_at)`, &payload); err != nil {
			return fmt.Errorf("insert coverage assignment: %w", err)
		}
		assignments[i] = payload
	}
	return nil
}

// CoverageRunRepository persists committed run summaries.
type CoverageRunRepository struct {
	db *sqlx.DB
}

// NewCoverageRunRepository constructs the repository.
func NewCoverageRunRepository(db *sqlx.DB) *CoverageRunRepository {
	return &CoverageRunRepository{db: db}
}

// Create stores a run row using the caller's executor.
func (r *CoverageRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.CoverageRun) error {
	if exec == nil {
		exec = r.db
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Summary) == 0 {
		run.Summary = []byte("{}")
	}
	const query = `INSERT INTO coverage_runs (id, coverage_date, day_type, periods_needed, periods_covered, candidates_evaluated, pool_size, coverage_rate, processing_ms, summary, created_by, created_at)
		VALUES (:id, :coverage_date, :day_type, :periods_needed, :periods_covered, :candidates_evaluated, :pool_size, :coverage_rate, :processing_ms, :summary, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, run); err != nil {
		return fmt.Errorf("create coverage run: %w", err)
	}
	return nil
}

// LatestByDate returns the most recent committed run for a date.
func (r *CoverageRunRepository) LatestByDate(ctx context.Context, date time.Time) (*models.CoverageRun, error) {
	const query = `SELECT id, coverage_date, day_type, periods_needed, periods_covered, candidates_evaluated, pool_size, coverage_rate, processing_ms, summary, created_by, created_at
		FROM coverage_runs WHERE coverage_date = $1 ORDER BY created_at DESC LIMIT 1`
	var run models.CoverageRun
	if err := r.db.GetContext(ctx, &run, query, date.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return &run, nil
}
