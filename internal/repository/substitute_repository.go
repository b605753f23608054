package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const substituteColumns = "id, full_name, email, phone, specialties, availability, max_daily_load, max_weekly_load, specialty_only, emergency_only, active, created_at, updated_at"

// SubstituteRepository persists the external substitute roster.
type SubstituteRepository struct {
	db *sqlx.DB
}

// NewSubstituteRepository constructs the repository.
func NewSubstituteRepository(db *sqlx.DB) *SubstituteRepository {
	return &SubstituteRepository{db: db}
}

// ListActive returns active substitutes ordered by id.
func (r *SubstituteRepository) ListActive(ctx context.Context) ([]models.Substitute, error) {
	query := fmt.Sprintf("SELECT %s FROM substitutes WHERE active = TRUE ORDER BY id ASC", substituteColumns)
	var subs []models.Substitute
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("list active substitutes: %w", err)
	}
	return subs, nil
}

// FindByID loads a substitute.
func (r *SubstituteRepository) FindByID(ctx context.Context, id string) (*models.Substitute, error) {
	query := fmt.Sprintf("SELECT %s FROM substitutes WHERE id = $1", substituteColumns)
	var sub models.Substitute
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// WeeklyLoads counts committed external cover periods per substitute between
// weekStart (inclusive) and before (exclusive).
func (r *SubstituteRepository) WeeklyLoads(ctx context.Context, weekStart, before time.Time) (map[string]int, error) {
	const query = `SELECT candidate_id AS substitute_id, COUNT(*) AS periods
		FROM coverage_assignments
		WHERE candidate_kind = 'external' AND coverage_date >= $1 AND coverage_date < $2
		GROUP BY candidate_id`
	var rows []models.SubstituteWeeklyLoad
	if err := r.db.SelectContext(ctx, &rows, query, weekStart.Format("2006-01-02"), before.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("count substitute weekly loads: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.SubstituteID] = row.Periods
	}
	return out, nil
}

// Create inserts a substitute.
func (r *SubstituteRepository) Create(ctx context.Context, sub *models.Substitute) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if len(sub.Availability) == 0 {
		sub.Availability = []byte("{}")
	}

	const query = `INSERT INTO substitutes (id, full_name, email, phone, specialties, availability, max_daily_load, max_weekly_load, specialty_only, emergency_only, active, created_at, updated_at)
		VALUES (:id, :full_name, :email, :phone, :specialties, :availability, :max_daily_load, :max_weekly_load, :specialty_only, :emergency_only, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create substitute: %w", err)
	}
	return nil
}
