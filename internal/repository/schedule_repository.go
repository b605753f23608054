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

const scheduleSource = "schedules s LEFT JOIN subjects sub ON sub.id = s.subject_id"

const scheduleColumns = `s.id, s.class_id, s.subject_id, COALESCE(sub.name, '') AS subject_name, s.teacher_id, s.day_of_week, COALESCE(s.day_type, '') AS day_type, s.period, COALESCE(s.period_label, '') AS period_label, s.room, s.is_teaching, s.created_at, s.updated_at`

// ScheduleRepository provides persistence for timetable rows.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules matching the filter ordered by teacher and period.
// A DayType filter keeps rows that apply to both day types.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	var w where
	if filter.TeacherID != "" {
		w.add("s.teacher_id = ?", filter.TeacherID)
	}
	if filter.DayOfWeek != "" {
		w.add("s.day_of_week = ?", strings.ToUpper(filter.DayOfWeek))
	}
	if filter.DayType != "" {
		w.add("COALESCE(s.day_type, '') IN ('', ?)", strings.ToUpper(filter.DayType))
	}

	schedules := []models.Schedule{}
	if err := selectWhere(ctx, r.db, &schedules, scheduleColumns, scheduleSource, &w, "ORDER BY s.teacher_id, s.period"); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// ListForDay returns every row for the weekday that applies to the day type.
func (r *ScheduleRepository) ListForDay(ctx context.Context, dayOfWeek, dayType string) ([]models.Schedule, error) {
	return r.List(ctx, models.ScheduleFilter{DayOfWeek: dayOfWeek, DayType: dayType})
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	return r.bulkInsertSchedules(ctx, r.db, []*models.Schedule{schedule})
}

// BulkCreate inserts many schedules within a transaction.
func (r *ScheduleRepository) BulkCreate(ctx context.Context, schedules []models.Schedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create schedules: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows := make([]*models.Schedule, len(schedules))
	for i := range schedules {
		rows[i] = &schedules[i]
	}
	if err = r.bulkInsertSchedules(ctx, tx, rows); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create schedules: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) bulkInsertSchedules(ctx context.Context, exec sqlx.ExtContext, schedules []*models.Schedule) error {
	now := time.Now().UTC()
	for _, schedule := range schedules {
		if schedule.ID == "" {
			schedule.ID = uuid.NewString()
		}
		if schedule.CreatedAt.IsZero() {
			schedule.CreatedAt = now
		}
		schedule.UpdatedAt = now
		schedule.DayOfWeek = strings.ToUpper(schedule.DayOfWeek)

		if _, err := sqlx.NamedExecContext(ctx, exec, `INSERT INTO schedules (id, class_id, subject_id, teacher_id, day_of_week, day_type, period, period_label, room, is_teaching, created_at, updated_at) VALUES (:id, :class_id, :subject_id, :teacher_id, :day_of_week, NULLIF(:day_type, ''), :period, NULLIF(:period_label, ''), :room, :is_teaching, :created_at, :updated_at)`, schedule); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return nil
}

// Delete removes a schedule by id; sql.ErrNoRows when it does not exist.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return expectAffected(res)
}
