package models

import (
	"time"

	"github.com/lib/pq"
)

// AbsenceStatus tracks how far an absence has been covered.
type AbsenceStatus string

const (
	AbsenceStatusPending           AbsenceStatus = "PENDING"
	AbsenceStatusPartiallyResolved AbsenceStatus = "PARTIALLY_RESOLVED"
	AbsenceStatusResolved          AbsenceStatus = "RESOLVED"
	AbsenceStatusUnresolved        AbsenceStatus = "UNRESOLVED"
)

// Absence is a teacher's reported absence for one school day. An empty
// PeriodsNeeded means the whole day.
type Absence struct {
	ID            string        `db:"id" json:"id"`
	TeacherID     string        `db:"teacher_id" json:"teacher_id"`
	AbsenceDate   time.Time     `db:"absence_date" json:"absence_date"`
	DayType       string        `db:"day_type" json:"day_type,omitempty"`
	PeriodsNeeded pq.Int64Array `db:"periods_needed" json:"periods_needed,omitempty"`
	Reason        *string       `db:"reason" json:"reason,omitempty"`
	Status        AbsenceStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// AbsenceStatusUpdate pairs an absence with its new status.
type AbsenceStatusUpdate struct {
	ID     string
	Status AbsenceStatus
}
