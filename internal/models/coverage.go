package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// CoverageAssignment is a committed decision for one (absence, period) pair.
// Candidate columns are NULL for uncovered periods.
type CoverageAssignment struct {
	ID            string    `db:"id" json:"id"`
	RunID         string    `db:"run_id" json:"run_id"`
	AbsenceID     string    `db:"absence_id" json:"absence_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	CoverageDate  time.Time `db:"coverage_date" json:"coverage_date"`
	DayType       string    `db:"day_type" json:"day_type"`
	Period        int       `db:"period" json:"period"`
	PeriodLabel   string    `db:"period_label" json:"period_label"`
	Subject       string    `db:"subject" json:"subject"`
	Room          string    `db:"room" json:"room"`
	CandidateID   *string   `db:"candidate_id" json:"candidate_id,omitempty"`
	CandidateName *string   `db:"candidate_name" json:"candidate_name,omitempty"`
	CandidateKind *string   `db:"candidate_kind" json:"candidate_kind,omitempty"`
	MatchQuality  string    `db:"match_quality" json:"match_quality"`
	DecidedAt     time.Time `db:"decided_at" json:"decided_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CoverageRun records the metrics of a committed coverage run.
type CoverageRun struct {
	ID                  string         `db:"id" json:"id"`
	CoverageDate        time.Time      `db:"coverage_date" json:"coverage_date"`
	DayType             string         `db:"day_type" json:"day_type"`
	PeriodsNeeded       int            `db:"periods_needed" json:"periods_needed"`
	PeriodsCovered      int            `db:"periods_covered" json:"periods_covered"`
	CandidatesEvaluated int            `db:"candidates_evaluated" json:"candidates_evaluated"`
	PoolSize            int            `db:"pool_size" json:"pool_size"`
	CoverageRate        float64        `db:"coverage_rate" json:"coverage_rate"`
	ProcessingMs        int64          `db:"processing_ms" json:"processing_ms"`
	Summary             types.JSONText `db:"summary" json:"summary"`
	CreatedBy           *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}
