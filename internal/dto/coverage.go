package dto

import (
	"time"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
)

// CoverageRunRequest identifies the school day to plan cover for.
type CoverageRunRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	DayType string `json:"dayType" validate:"required,oneof=A B a b"`
	// Emergency enables the override pass for this run when the service allows it.
	Emergency *bool `json:"emergency,omitempty"`
	// Refresh bypasses a cached preview.
	Refresh bool `json:"refresh,omitempty"`
}

// CoverageExportRequest asks for the coverage sheet of a committed day.
type CoverageExportRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// CoveragePlanResponse wraps an engine plan with run bookkeeping.
type CoveragePlanResponse struct {
	RunID     string         `json:"runId,omitempty"`
	Committed bool           `json:"committed"`
	Cached    bool           `json:"cached"`
	Emergency bool           `json:"emergency"`
	Skipped   []string       `json:"skippedAbsences,omitempty"`
	Plan      *coverage.Plan `json:"plan"`
}

// CoverageExportResponse describes a rendered coverage sheet.
type CoverageExportResponse struct {
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CoverageAssignmentNotice is the queue payload for a covered period.
type CoverageAssignmentNotice struct {
	Date          string `json:"date"`
	AbsenceID     string `json:"absenceId"`
	TeacherID     string `json:"teacherId"`
	CandidateID   string `json:"candidateId"`
	CandidateName string `json:"candidateName"`
	CandidateKind string `json:"candidateKind"`
	Period        string `json:"period"`
	Subject       string `json:"subject"`
	Room          string `json:"room"`
	MatchQuality  string `json:"matchQuality"`
}

// CoverageEscalationNotice alerts administrators to an uncovered period.
type CoverageEscalationNotice struct {
	Date      string `json:"date"`
	AbsenceID string `json:"absenceId"`
	TeacherID string `json:"teacherId"`
	Period    string `json:"period"`
	Subject   string `json:"subject"`
}

// CoverageSummaryNotice is the end-of-run digest.
type CoverageSummaryNotice struct {
	Date    string              `json:"date"`
	DayType string              `json:"dayType"`
	RunID   string              `json:"runId"`
	Metrics coverage.RunMetrics `json:"metrics"`
}
