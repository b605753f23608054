package coverage

import (
	"fmt"
	"sort"

	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type decisionKey struct {
	AbsenceID string
	Period    int
}

type bookingKey struct {
	CandidateID string
	Period      int
}

// Aggregator collects decisions and derives absence outcomes and run metrics.
type Aggregator struct {
	absences  []Absence
	needed    map[string]int
	decisions map[decisionKey]AssignmentDecision
	bookings  map[bookingKey]decisionKey
}

// NewAggregator prepares an aggregator for the run's absences. needed maps an
// absence ID to the number of periods that require coverage.
func NewAggregator(absences []Absence, needed map[string]int) *Aggregator {
	return &Aggregator{
		absences:  absences,
		needed:    needed,
		decisions: make(map[decisionKey]AssignmentDecision),
		bookings:  make(map[bookingKey]decisionKey),
	}
}

// Record stores a decision. A second decision for the same (absence, period),
// or a candidate booked twice at one period, is a constraint conflict.
func (a *Aggregator) Record(d AssignmentDecision) error {
	key := decisionKey{AbsenceID: d.AbsenceID, Period: d.Period.Ordinal}
	if _, exists := a.decisions[key]; exists {
		return appErrors.Clone(appErrors.ErrConstraintConflict,
			fmt.Sprintf("absence %s period %d decided twice", d.AbsenceID, d.Period.Ordinal))
	}
	if d.Covered() {
		booking := bookingKey{CandidateID: d.CandidateID, Period: d.Period.Ordinal}
		if prior, taken := a.bookings[booking]; taken {
			return appErrors.Clone(appErrors.ErrConstraintConflict,
				fmt.Sprintf("candidate %s double-booked at period %d (absences %s and %s)", d.CandidateID, d.Period.Ordinal, prior.AbsenceID, d.AbsenceID))
		}
		a.bookings[booking] = key
	}
	a.decisions[key] = d
	return nil
}

// Decisions returns every recorded decision ordered by absence, then period.
func (a *Aggregator) Decisions() []AssignmentDecision {
	out := make([]AssignmentDecision, 0, len(a.decisions))
	for _, d := range a.decisions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AbsenceID != out[j].AbsenceID {
			return out[i].AbsenceID < out[j].AbsenceID
		}
		return out[i].Period.Ordinal < out[j].Period.Ordinal
	})
	return out
}

// Unresolved lists uncovered (absence, period) pairs for escalation.
func (a *Aggregator) Unresolved() []UnresolvedPeriod {
	out := make([]UnresolvedPeriod, 0)
	for _, d := range a.Decisions() {
		if d.Covered() {
			continue
		}
		out = append(out, UnresolvedPeriod{
			AbsenceID: d.AbsenceID,
			TeacherID: d.TeacherID,
			Period:    d.Period,
			Subject:   d.Subject,
		})
	}
	return out
}

// Outcomes computes each absence's resolution status in absence ID order. An
// absence with nothing to cover counts as resolved.
func (a *Aggregator) Outcomes() []AbsenceOutcome {
	covered := make(map[string]int, len(a.absences))
	for _, d := range a.decisions {
		if d.Covered() {
			covered[d.AbsenceID]++
		}
	}
	out := make([]AbsenceOutcome, 0, len(a.absences))
	for _, absence := range a.absences {
		needed := a.needed[absence.ID]
		got := covered[absence.ID]
		status := AbsenceStatusUnresolved
		switch {
		case got == needed:
			status = AbsenceStatusResolved
		case got > 0:
			status = AbsenceStatusPartiallyResolved
		}
		out = append(out, AbsenceOutcome{
			AbsenceID:      absence.ID,
			TeacherID:      absence.TeacherID,
			Status:         status,
			PeriodsNeeded:  needed,
			PeriodsCovered: got,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AbsenceID < out[j].AbsenceID
	})
	return out
}

// Metrics derives run metrics from the recorded decisions.
func (a *Aggregator) Metrics(evaluated, poolSize int, elapsedMs int64) RunMetrics {
	metrics := RunMetrics{
		TotalCandidatesEvaluated: evaluated,
		TotalPeriodsNeeded:       len(a.decisions),
		ProcessingTimeMs:         elapsedMs,
		PoolSize:                 poolSize,
	}
	for _, d := range a.decisions {
		if d.Covered() {
			metrics.TotalPeriodsCovered++
		}
	}
	if metrics.TotalPeriodsNeeded > 0 {
		metrics.CoverageRate = float64(metrics.TotalPeriodsCovered) / float64(metrics.TotalPeriodsNeeded)
	}
	return metrics
}
