// Package coverage computes a single school day's cover plan for absent staff:
// it builds the candidate pool, matches candidates to uncovered periods scarcest
// first under availability and load ceilings, and aggregates the outcome.
//
// The package performs no I/O. Every run starts from fresh state, so runs for
// different dates may execute concurrently.
package coverage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

// Options configures an Engine.
type Options struct {
	Logger *zap.Logger
	// Clock stamps decisions; one reading is taken per run.
	Clock          func() time.Time
	OverridePolicy OverridePolicy
	// Workers bounds the fan-out used when ranking needs by scarcity.
	Workers int
}

// Engine runs coverage plans. It holds configuration only, never run state.
type Engine struct {
	logger  *zap.Logger
	clock   func() time.Time
	policy  OverridePolicy
	workers int
}

// NewEngine builds an engine with defaults for any unset option.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.OverridePolicy == nil {
		opts.OverridePolicy = NoOverridePolicy
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		logger:  opts.Logger,
		clock:   opts.Clock,
		policy:  opts.OverridePolicy,
		workers: opts.Workers,
	}
}

// Run computes the plan for in. Invalid input is refused before any matching
// starts; uncovered periods are a normal outcome, not an error.
func (e *Engine) Run(ctx context.Context, in RunInput) (*Plan, error) {
	if err := validateRunHeader(in); err != nil {
		return nil, err
	}
	if len(in.Absences) == 0 {
		return emptyPlan(in), nil
	}

	start := time.Now()
	index := NewScheduleIndex(in.Schedule, in.Periods)
	if dupes := index.DuplicateEntries(); dupes > 0 {
		e.logger.Warn("duplicate schedule entries ignored", zap.Int("count", dupes))
	}
	if err := validateAbsences(in, index); err != nil {
		return nil, err
	}

	absences := make([]Absence, len(in.Absences))
	copy(absences, in.Absences)
	sort.Slice(absences, func(i, j int) bool { return absences[i].ID < absences[j].ID })

	needs, needed := collectNeeds(absences, in.DayType, index)
	pool := BuildPool(PoolInput{
		Date:        in.Date,
		DayType:     in.DayType,
		Absences:    absences,
		Substitutes: in.Substitutes,
		Staff:       in.Staff,
		Index:       index,
		Logger:      e.logger,
	})
	tracker := NewLoadTracker(pool)
	matcher := NewMatcher(pool, tracker, e.policy, e.workers, e.logger)
	agg := NewAggregator(absences, needed)

	if err := matcher.Run(ctx, needs, e.clock(), agg.Record); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("coverage run cancelled: %w", ctxErr)
		}
		return nil, err
	}

	plan := &Plan{
		Date:       in.Date,
		DayType:    in.DayType,
		Decisions:  agg.Decisions(),
		Absences:   agg.Outcomes(),
		Unresolved: agg.Unresolved(),
		Loads:      tracker.Snapshot(),
		Metrics:    agg.Metrics(matcher.Evaluated(), len(pool), time.Since(start).Milliseconds()),
	}
	e.logger.Info("coverage run complete",
		zap.String("date", in.Date.Format("2006-01-02")),
		zap.String("day_type", string(in.DayType)),
		zap.Int("absences", len(absences)),
		zap.Int("periods_needed", plan.Metrics.TotalPeriodsNeeded),
		zap.Int("periods_covered", plan.Metrics.TotalPeriodsCovered),
		zap.Int("candidates_evaluated", plan.Metrics.TotalCandidatesEvaluated),
		zap.Int64("processing_ms", plan.Metrics.ProcessingTimeMs),
	)
	return plan, nil
}

func emptyPlan(in RunInput) *Plan {
	return &Plan{
		Date:       in.Date,
		DayType:    in.DayType,
		Decisions:  []AssignmentDecision{},
		Absences:   []AbsenceOutcome{},
		Unresolved: []UnresolvedPeriod{},
		Loads:      []CandidateLoad{},
	}
}

func collectNeeds(absences []Absence, dayType DayType, index *ScheduleIndex) ([]Need, map[string]int) {
	needs := make([]Need, 0)
	needed := make(map[string]int, len(absences))
	for _, absence := range absences {
		var filter map[int]struct{}
		if len(absence.PeriodsNeeded) > 0 {
			filter = make(map[int]struct{}, len(absence.PeriodsNeeded))
			for _, p := range absence.PeriodsNeeded {
				filter[p] = struct{}{}
			}
		}
		for _, ordinal := range index.PeriodsTaughtBy(absence.TeacherID, dayType) {
			if filter != nil {
				if _, ok := filter[ordinal]; !ok {
					continue
				}
			}
			entry, _ := index.EntryAt(absence.TeacherID, dayType, ordinal)
			period := index.Period(ordinal)
			if entry.Period.Label != "" {
				period.Label = entry.Period.Label
			}
			needs = append(needs, Need{
				AbsenceID: absence.ID,
				TeacherID: absence.TeacherID,
				Period:    period,
				Subject:   entry.Subject,
				Room:      entry.Room,
			})
			needed[absence.ID]++
		}
	}
	return needs, needed
}

func validateRunHeader(in RunInput) error {
	if in.Date.IsZero() {
		return inputInvalid("date is required")
	}
	if !in.DayType.Valid() {
		return inputInvalid(fmt.Sprintf("day type %q must be A or B", in.DayType))
	}
	return nil
}

func validateAbsences(in RunInput, index *ScheduleIndex) error {
	runDate := in.Date.Format("2006-01-02")
	seen := make(map[string]struct{}, len(in.Absences))
	for _, absence := range in.Absences {
		if absence.ID == "" {
			return inputInvalid("absence id is required")
		}
		if absence.TeacherID == "" {
			return inputInvalid(fmt.Sprintf("absence %s has no teacher", absence.ID))
		}
		if _, dup := seen[absence.ID]; dup {
			return inputInvalid(fmt.Sprintf("absence %s listed more than once", absence.ID))
		}
		seen[absence.ID] = struct{}{}
		if !absence.Date.IsZero() && absence.Date.Format("2006-01-02") != runDate {
			return inputInvalid(fmt.Sprintf("absence %s is dated %s, run is for %s", absence.ID, absence.Date.Format("2006-01-02"), runDate))
		}
		if absence.DayType != "" && absence.DayType != in.DayType {
			return inputInvalid(fmt.Sprintf("absence %s is for day type %s, run is for %s", absence.ID, absence.DayType, in.DayType))
		}
		if !index.HasOwner(absence.TeacherID) {
			return inputInvalid(fmt.Sprintf("absence %s references teacher %s with no schedule data", absence.ID, absence.TeacherID))
		}
	}
	return nil
}

func inputInvalid(message string) error {
	return appErrors.Clone(appErrors.ErrInputInvalid, message)
}
