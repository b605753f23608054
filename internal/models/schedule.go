package models

import "time"

// Schedule is one teacher's timetable row for a period on a weekday. DayType
// is empty for rows that apply on both A and B days.
type Schedule struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	DayType     string    `db:"day_type" json:"day_type,omitempty"`
	Period      int       `db:"period" json:"period"`
	PeriodLabel string    `db:"period_label" json:"period_label,omitempty"`
	Room        string    `db:"room" json:"room"`
	IsTeaching  bool      `db:"is_teaching" json:"is_teaching"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	TeacherID string
	DayOfWeek string
	DayType   string
}
