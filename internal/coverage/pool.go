package coverage

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PoolInput is what the pool builder needs to produce the day's candidates.
type PoolInput struct {
	Date        time.Time
	DayType     DayType
	Absences    []Absence
	Substitutes []ExternalSubstitute
	Staff       []InternalStaff
	Index       *ScheduleIndex
	Logger      *zap.Logger
}

// BuildPool returns every candidate with at least one available period on the
// target day, ordered by ID so tie-breaks are reproducible.
func BuildPool(in PoolInput) []Candidate {
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	absent := make(map[string]struct{}, len(in.Absences))
	for _, a := range in.Absences {
		absent[a.TeacherID] = struct{}{}
	}
	weekday := in.Date.Weekday().String()

	seen := make(map[string]struct{}, len(in.Substitutes)+len(in.Staff))
	pool := make([]Candidate, 0, len(in.Substitutes)+len(in.Staff))
	pruned := 0

	for _, sub := range in.Substitutes {
		if sub.ID == "" {
			continue
		}
		if _, dup := seen[sub.ID]; dup {
			logger.Warn("duplicate candidate id ignored", zap.String("candidate_id", sub.ID), zap.String("kind", string(KindExternal)))
			continue
		}
		seen[sub.ID] = struct{}{}
		if _, isAbsent := absent[sub.ID]; isAbsent {
			continue
		}
		candidate := NewExternalCandidate(sub, availabilityFor(sub.Availability, weekday))
		if len(candidate.Availability()) == 0 {
			pruned++
			continue
		}
		pool = append(pool, candidate)
	}

	for _, staff := range in.Staff {
		if staff.ID == "" {
			continue
		}
		if _, dup := seen[staff.ID]; dup {
			logger.Warn("duplicate candidate id ignored", zap.String("candidate_id", staff.ID), zap.String("kind", string(KindInternal)))
			continue
		}
		seen[staff.ID] = struct{}{}
		if _, isAbsent := absent[staff.ID]; isAbsent {
			continue
		}
		var free []int
		scheduled := 0
		if in.Index != nil {
			free = withoutPeriods(in.Index.FreePeriods(staff.ID, in.DayType), staff.Unavailable)
			scheduled = len(in.Index.PeriodsTaughtBy(staff.ID, in.DayType))
		}
		candidate := NewInternalCandidate(staff, free, scheduled)
		if len(candidate.Availability()) == 0 {
			pruned++
			continue
		}
		pool = append(pool, candidate)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].ID() < pool[j].ID()
	})

	logger.Debug("candidate pool built",
		zap.Int("size", len(pool)),
		zap.Int("pruned", pruned),
		zap.String("weekday", weekday),
		zap.String("day_type", string(in.DayType)),
	)
	return pool
}

func availabilityFor(availability map[string][]int, weekday string) []int {
	if periods, ok := availability[weekday]; ok {
		return periods
	}
	for day, periods := range availability {
		if strings.EqualFold(strings.TrimSpace(day), weekday) {
			return periods
		}
	}
	return nil
}

func withoutPeriods(periods, blocked []int) []int {
	if len(blocked) == 0 {
		return periods
	}
	skip := make(map[int]struct{}, len(blocked))
	for _, p := range blocked {
		skip[p] = struct{}{}
	}
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if _, ok := skip[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
