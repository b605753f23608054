package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const absenceColumns = "id, teacher_id, absence_date, COALESCE(day_type, '') AS day_type, periods_needed, reason, status, created_at, updated_at"

// AbsenceRepository persists reported teacher absences.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// ListByDate returns every absence reported for the date ordered by id.
func (r *AbsenceRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Absence, error) {
	query := fmt.Sprintf("SELECT %s FROM absences WHERE absence_date = $1 ORDER BY id ASC", absenceColumns)
	var absences []models.Absence
	if err := r.db.SelectContext(ctx, &absences, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list absences by date: %w", err)
	}
	return absences, nil
}

// FindByID loads a single absence.
func (r *AbsenceRepository) FindByID(ctx context.Context, id string) (*models.Absence, error) {
	query := fmt.Sprintf("SELECT %s FROM absences WHERE id = $1", absenceColumns)
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, query, id); err != nil {
		return nil, err
	}
	return &absence, nil
}

// Create stores a new absence in PENDING state.
func (r *AbsenceRepository) Create(ctx context.Context, absence *models.Absence) error {
	if absence.ID == "" {
		absence.ID = uuid.NewString()
	}
	if absence.Status == "" {
		absence.Status = models.AbsenceStatusPending
	}
	now := time.Now().UTC()
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = now
	}
	absence.UpdatedAt = now

	const query = `INSERT INTO absences (id, teacher_id, absence_date, day_type, periods_needed, reason, status, created_at, updated_at)
		VALUES (:id, :teacher_id, :absence_date, NULLIF(:day_type, ''), :periods_needed, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, absence); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// UpdateStatuses writes resolution statuses using the provided executor so it
// can join a caller's transaction.
func (r *AbsenceRepository) UpdateStatuses(ctx context.Context, exec sqlx.ExtContext, updates []models.AbsenceStatusUpdate) error {
	if exec == nil {
		exec = r.db
	}
	now := time.Now().UTC()
	for _, update := range updates {
		if _, err := exec.ExecContext(ctx, `UPDATE absences SET status = $1, updated_at = $2 WHERE id = $3`, update.Status, now, update.ID); err != nil {
			return fmt.Errorf("update absence %s status: %w", update.ID, err)
		}
	}
	return nil
}
