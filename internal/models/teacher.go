package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents an instructor record. Teachers with CanCover set join the
// internal cover pool when they have free periods.
type Teacher struct {
	ID            string         `db:"id" json:"id"`
	NIP           *string        `db:"nip" json:"nip,omitempty"`
	Email         string         `db:"email" json:"email"`
	FullName      string         `db:"full_name" json:"full_name"`
	Phone         *string        `db:"phone" json:"phone,omitempty"`
	Specialties   pq.StringArray `db:"specialties" json:"specialties"`
	CanCover      bool           `db:"can_cover" json:"can_cover"`
	EmergencyOnly bool           `db:"emergency_only" json:"emergency_only"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Active    *bool
	CanCover  *bool
	Specialty string
}

// TeacherWeeklyLoad is the number of periods a teacher already covered in the
// week before the run date.
type TeacherWeeklyLoad struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	Periods   int    `db:"periods" json:"periods"`
}
