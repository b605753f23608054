package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-coverage-api/internal/models"
)

const teacherColumns = "id, nip, email, full_name, phone, specialties, can_cover, emergency_only, active, created_at, updated_at"

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching filters ordered by id.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	var w where
	if filter.Active != nil {
		w.add("active = ?", *filter.Active)
	}
	if filter.CanCover != nil {
		w.add("can_cover = ?", *filter.CanCover)
	}
	if specialty := strings.TrimSpace(filter.Specialty); specialty != "" {
		w.add("EXISTS (SELECT 1 FROM unnest(specialties) AS sp WHERE lower(sp) = lower(?))", specialty)
	}

	teachers := []models.Teacher{}
	if err := selectWhere(ctx, r.db, &teachers, teacherColumns, "teachers", &w, "ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListCoverPool returns active teachers who may cover colleagues' classes.
func (r *TeacherRepository) ListCoverPool(ctx context.Context) ([]models.Teacher, error) {
	active, canCover := true, true
	return r.List(ctx, models.TeacherFilter{Active: &active, CanCover: &canCover})
}

// WeeklyCoverLoads counts committed internal cover periods per teacher between
// weekStart (inclusive) and before (exclusive).
func (r *TeacherRepository) WeeklyCoverLoads(ctx context.Context, weekStart, before time.Time) (map[string]int, error) {
	const query = `SELECT candidate_id AS teacher_id, COUNT(*) AS periods
		FROM coverage_assignments
		WHERE candidate_kind = 'internal' AND coverage_date >= $1 AND coverage_date < $2
		GROUP BY candidate_id`
	var rows []models.TeacherWeeklyLoad
	if err := r.db.SelectContext(ctx, &rows, query, weekStart.Format("2006-01-02"), before.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("count teacher weekly cover loads: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.TeacherID] = row.Periods
	}
	return out, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, nip, email, full_name, phone, specialties, can_cover, emergency_only, active, created_at, updated_at)
		VALUES (:id, :nip, :email, :full_name, :phone, :specialties, :can_cover, :emergency_only, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Deactivate marks a teacher inactive, removing them from the cover pool.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return expectAffected(res)
}
