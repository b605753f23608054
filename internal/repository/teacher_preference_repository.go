package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const preferenceColumns = "id, teacher_id, max_load_per_day, max_load_per_week, unavailable, created_at, updated_at"

// TeacherPreferenceRepository persists teacher preferences.
type TeacherPreferenceRepository struct {
	db *sqlx.DB
}

// NewTeacherPreferenceRepository constructs the repository.
func NewTeacherPreferenceRepository(db *sqlx.DB) *TeacherPreferenceRepository {
	return &TeacherPreferenceRepository{db: db}
}

// GetByTeacher returns stored preferences for a teacher.
func (r *TeacherPreferenceRepository) GetByTeacher(ctx context.Context, teacherID string) (*models.TeacherPreference, error) {
	query := "SELECT " + preferenceColumns + " FROM teacher_preferences WHERE teacher_id = $1"
	var pref models.TeacherPreference
	if err := r.db.GetContext(ctx, &pref, query, teacherID); err != nil {
		return nil, err
	}
	return &pref, nil
}

// ListByTeachers returns preferences for the given teachers keyed by teacher id.
func (r *TeacherPreferenceRepository) ListByTeachers(ctx context.Context, teacherIDs []string) (map[string]models.TeacherPreference, error) {
	out := make(map[string]models.TeacherPreference, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return out, nil
	}
	query := "SELECT " + preferenceColumns + " FROM teacher_preferences WHERE teacher_id = ANY($1)"
	var prefs []models.TeacherPreference
	if err := r.db.SelectContext(ctx, &prefs, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list teacher preferences: %w", err)
	}
	for _, pref := range prefs {
		out[pref.TeacherID] = pref
	}
	return out, nil
}

// Upsert creates or replaces a teacher's preferences. pref.ID and
// pref.CreatedAt are refreshed from the stored row.
func (r *TeacherPreferenceRepository) Upsert(ctx context.Context, pref *models.TeacherPreference) error {
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now
	if len(pref.Unavailable) == 0 {
		pref.Unavailable = types.JSONText("[]")
	}

	query, args, err := sqlx.Named(`INSERT INTO teacher_preferences (id, teacher_id, max_load_per_day, max_load_per_week, unavailable, created_at, updated_at)
		VALUES (:id, :teacher_id, :max_load_per_day, :max_load_per_week, :unavailable, :created_at, :updated_at)
		ON CONFLICT (teacher_id) DO UPDATE
		SET max_load_per_day = EXCLUDED.max_load_per_day,
		    max_load_per_week = EXCLUDED.max_load_per_week,
		    unavailable = EXCLUDED.unavailable,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`, pref)
	if err != nil {
		return fmt.Errorf("build teacher preference upsert: %w", err)
	}
	if err := r.db.QueryRowxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...).Scan(&pref.ID, &pref.CreatedAt); err != nil {
		return fmt.Errorf("upsert teacher preference: %w", err)
	}
	return nil
}
