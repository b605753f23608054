package coverage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// continuityBonus favours internal staff when specialty scores tie.
const continuityBonus = 1

// Need is one (absence, period) pair that requires coverage.
type Need struct {
	AbsenceID string
	TeacherID string
	Period    Period
	Subject   string
	Room      string
}

// OverridePolicy decides whether a candidate may be used as an emergency
// override for a need once the normal pass found nobody. Hard availability and
// load constraints still apply to candidates it accepts.
type OverridePolicy func(c Candidate, n Need) bool

// EmergencyFlagPolicy admits candidates administratively flagged as
// emergency-only, and relaxes specialty-only restrictions for everyone else.
func EmergencyFlagPolicy(c Candidate, _ Need) bool {
	return c.EmergencyOnly() || c.SpecialtyOnly()
}

// NoOverridePolicy never overrides; unmatched periods stay uncovered.
func NoOverridePolicy(Candidate, Need) bool {
	return false
}

type rankedCandidate struct {
	candidate Candidate
	specialty int
	internal  int
	load      int
	order     int
}

// Matcher assigns candidates to needs, scarcest need first.
type Matcher struct {
	pool      []Candidate
	position  map[string]int
	tracker   *LoadTracker
	policy    OverridePolicy
	workers   int
	logger    *zap.Logger
	evaluated int
}

// NewMatcher wires a matcher to a run's pool and tracker.
func NewMatcher(pool []Candidate, tracker *LoadTracker, policy OverridePolicy, workers int, logger *zap.Logger) *Matcher {
	if policy == nil {
		policy = NoOverridePolicy
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	position := make(map[string]int, len(pool))
	for i, c := range pool {
		position[c.ID()] = i
	}
	return &Matcher{
		pool:     pool,
		position: position,
		tracker:  tracker,
		policy:   policy,
		workers:  workers,
		logger:   logger,
	}
}

// Evaluated returns the number of candidate checks performed so far.
func (m *Matcher) Evaluated() int {
	return m.evaluated
}

// Run resolves every need and hands each decision to record. The context is
// checked between needs, never in the middle of a decision.
func (m *Matcher) Run(ctx context.Context, needs []Need, stamp time.Time, record func(AssignmentDecision) error) error {
	remaining := make([]Need, len(needs))
	copy(remaining, needs)
	sortNeeds(remaining)

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		counts := m.scarcity(remaining)
		pick := 0
		for i := 1; i < len(counts); i++ {
			if counts[i] < counts[pick] {
				pick = i
			}
		}
		need := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)

		decision := m.resolve(need, stamp)
		if err := record(decision); err != nil {
			return err
		}
	}
	return nil
}

// scarcity counts currently-eligible candidates per need. Counting only reads
// tracker state, so it may fan out across workers.
func (m *Matcher) scarcity(needs []Need) []int {
	counts := make([]int, len(needs))
	if m.workers <= 1 || len(needs) <= m.workers {
		for i, n := range needs {
			counts[i] = m.countEligible(n)
		}
		return counts
	}

	var wg sync.WaitGroup
	chunk := (len(needs) + m.workers - 1) / m.workers
	for start := 0; start < len(needs); start += chunk {
		end := start + chunk
		if end > len(needs) {
			end = len(needs)
		}
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				counts[i] = m.countEligible(needs[i])
			}
		}(start, end)
	}
	wg.Wait()
	return counts
}

func (m *Matcher) countEligible(n Need) int {
	count := 0
	for _, c := range m.pool {
		if m.eligible(c, n, false) {
			count++
		}
	}
	return count
}

func (m *Matcher) resolve(n Need, stamp time.Time) AssignmentDecision {
	decision := AssignmentDecision{
		AbsenceID:    n.AbsenceID,
		TeacherID:    n.TeacherID,
		Period:       n.Period,
		Subject:      n.Subject,
		Room:         n.Room,
		MatchQuality: MatchUncovered,
		Timestamp:    stamp,
	}

	if len(m.pool) == 0 {
		m.evaluated++
		return decision
	}

	ranked := m.rank(n, m.pool, false)
	for _, r := range ranked {
		if !m.tracker.TryReserve(r.candidate.ID(), n.Period.Ordinal) {
			continue
		}
		quality := MatchGeneral
		if r.specialty > 0 {
			quality = MatchSpecialty
		}
		return assign(decision, r.candidate, quality)
	}

	overrides := make([]Candidate, 0)
	for _, c := range m.pool {
		if m.policy(c, n) {
			overrides = append(overrides, c)
		}
	}
	for _, r := range m.rank(n, overrides, true) {
		if !m.tracker.TryReserve(r.candidate.ID(), n.Period.Ordinal) {
			continue
		}
		m.logger.Info("emergency override applied",
			zap.String("absence_id", n.AbsenceID),
			zap.Int("period", n.Period.Ordinal),
			zap.String("candidate_id", r.candidate.ID()),
		)
		return assign(decision, r.candidate, MatchEmergencyOverride)
	}

	m.logger.Debug("period left uncovered",
		zap.String("absence_id", n.AbsenceID),
		zap.Int("period", n.Period.Ordinal),
		zap.String("subject", n.Subject),
	)
	return decision
}

// rank filters candidates through the hard constraints and orders survivors
// best first. Every candidate examined counts as one evaluation.
func (m *Matcher) rank(n Need, candidates []Candidate, override bool) []rankedCandidate {
	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		m.evaluated++
		if !m.eligible(c, n, override) {
			continue
		}
		r := rankedCandidate{
			candidate: c,
			specialty: c.SpecialtyScore(n.Subject),
			load:      m.tracker.Load(c.ID()),
			order:     m.position[c.ID()],
		}
		if c.Kind() == KindInternal {
			r.internal = continuityBonus
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.specialty != b.specialty {
			return a.specialty > b.specialty
		}
		if a.internal != b.internal {
			return a.internal > b.internal
		}
		if a.load != b.load {
			return a.load < b.load
		}
		return a.order < b.order
	})
	return ranked
}

// eligible applies the hard constraints in order: no double booking,
// availability, load ceilings. The normal pass also honours emergency-only and
// specialty-only restrictions, which an override lifts.
func (m *Matcher) eligible(c Candidate, n Need, override bool) bool {
	period := n.Period.Ordinal
	if m.tracker.Reserved(c.ID(), period) {
		return false
	}
	if !c.IsAvailable(period) {
		return false
	}
	if !m.tracker.CanTake(c.ID(), period) {
		return false
	}
	if override {
		return true
	}
	if c.EmergencyOnly() {
		return false
	}
	if c.SpecialtyOnly() && c.SpecialtyScore(n.Subject) == 0 {
		return false
	}
	return true
}

func assign(decision AssignmentDecision, c Candidate, quality MatchQuality) AssignmentDecision {
	decision.CandidateID = c.ID()
	decision.CandidateName = c.Name()
	decision.CandidateKind = c.Kind()
	decision.MatchQuality = quality
	return decision
}

func sortNeeds(needs []Need) {
	sort.SliceStable(needs, func(i, j int) bool {
		if needs[i].AbsenceID != needs[j].AbsenceID {
			return needs[i].AbsenceID < needs[j].AbsenceID
		}
		return needs[i].Period.Ordinal < needs[j].Period.Ordinal
	})
}
