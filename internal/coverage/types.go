package coverage

import (
	"strconv"
	"strings"
	"time"
)

// DayType designates the A/B rotation a school day follows.
type DayType string

const (
	DayTypeA DayType = "A"
	DayTypeB DayType = "B"
)

// Valid reports whether the day type is one of the known rotations.
func (d DayType) Valid() bool {
	return d == DayTypeA || d == DayTypeB
}

// ParseDayType normalises user input such as "a" or " B ".
func ParseDayType(raw string) (DayType, bool) {
	d := DayType(strings.ToUpper(strings.TrimSpace(raw)))
	return d, d.Valid()
}

// Period is a discrete teaching slot within a school day.
type Period struct {
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
}

// Name returns the label when present, otherwise an ordinal form such as "3rd".
func (p Period) Name() string {
	if p.Label != "" {
		return p.Label
	}
	return ordinalLabel(p.Ordinal)
}

// ScheduleEntry is one row of a staff member's timetable.
type ScheduleEntry struct {
	OwnerID    string  `json:"ownerId"`
	Period     Period  `json:"period"`
	DayOfWeek  string  `json:"dayOfWeek"`
	DayType    DayType `json:"dayType,omitempty"`
	Subject    string  `json:"subject"`
	Room       string  `json:"room"`
	IsTeaching bool    `json:"isTeaching"`
}

// AbsenceStatus tracks how much of an absence has been covered.
type AbsenceStatus string

const (
	AbsenceStatusPending           AbsenceStatus = "pending"
	AbsenceStatusPartiallyResolved AbsenceStatus = "partially-resolved"
	AbsenceStatusResolved          AbsenceStatus = "resolved"
	AbsenceStatusUnresolved        AbsenceStatus = "unresolved"
)

// Absence is a staff member who will not teach on the run date. A non-empty
// PeriodsNeeded narrows coverage to a partial day; empty means every taught period.
type Absence struct {
	ID            string        `json:"id"`
	TeacherID     string        `json:"teacherId"`
	Date          time.Time     `json:"date"`
	DayType       DayType       `json:"dayType"`
	PeriodsNeeded []int         `json:"periodsNeeded,omitempty"`
	Status        AbsenceStatus `json:"status"`
}

// MatchQuality classifies how a period was covered.
type MatchQuality string

const (
	MatchSpecialty         MatchQuality = "specialty-match"
	MatchGeneral           MatchQuality = "general"
	MatchEmergencyOverride MatchQuality = "emergency-override"
	MatchUncovered         MatchQuality = "uncovered"
)

// AssignmentDecision is the outcome for a single (absence, period) pair.
type AssignmentDecision struct {
	AbsenceID     string        `json:"absenceId"`
	TeacherID     string        `json:"teacherId"`
	Period        Period        `json:"period"`
	Subject       string        `json:"subject"`
	Room          string        `json:"room,omitempty"`
	CandidateID   string        `json:"candidateId,omitempty"`
	CandidateName string        `json:"candidateName,omitempty"`
	CandidateKind CandidateKind `json:"candidateKind,omitempty"`
	MatchQuality  MatchQuality  `json:"matchQuality"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Covered reports whether a candidate was assigned.
func (d AssignmentDecision) Covered() bool {
	return d.CandidateID != ""
}

// RunMetrics summarises the cost and effectiveness of a run.
type RunMetrics struct {
	TotalCandidatesEvaluated int     `json:"totalCandidatesEvaluated"`
	TotalPeriodsNeeded       int     `json:"totalPeriodsNeeded"`
	TotalPeriodsCovered      int     `json:"totalPeriodsCovered"`
	ProcessingTimeMs         int64   `json:"processingTimeMs"`
	PoolSize                 int     `json:"poolSize"`
	CoverageRate             float64 `json:"coverageRate"`
}

// UnresolvedPeriod identifies demand that needs escalation.
type UnresolvedPeriod struct {
	AbsenceID string `json:"absenceId"`
	TeacherID string `json:"teacherId"`
	Period    Period `json:"period"`
	Subject   string `json:"subject"`
}

// AbsenceOutcome reports the resolution state computed for an absence.
type AbsenceOutcome struct {
	AbsenceID      string        `json:"absenceId"`
	TeacherID      string        `json:"teacherId"`
	Status         AbsenceStatus `json:"status"`
	PeriodsNeeded  int           `json:"periodsNeeded"`
	PeriodsCovered int           `json:"periodsCovered"`
}

// Plan is the complete engine output for one date.
type Plan struct {
	Date       time.Time            `json:"date"`
	DayType    DayType              `json:"dayType"`
	Decisions  []AssignmentDecision `json:"decisions"`
	Absences   []AbsenceOutcome     `json:"absences"`
	Unresolved []UnresolvedPeriod   `json:"unresolved"`
	Loads      []CandidateLoad      `json:"loads"`
	Metrics    RunMetrics           `json:"metrics"`
}

// RunInput is the read-only snapshot a run is computed from.
type RunInput struct {
	Date        time.Time
	DayType     DayType
	Absences    []Absence
	Schedule    []ScheduleEntry
	Periods     []Period
	Substitutes []ExternalSubstitute
	Staff       []InternalStaff
}

func ordinalLabel(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
