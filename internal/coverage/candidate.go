package coverage

import (
	"sort"
	"strings"
)

// CandidateKind tags the two candidate variants.
type CandidateKind string

const (
	KindExternal CandidateKind = "external"
	KindInternal CandidateKind = "internal"
)

// specialtyMatchScore is awarded when a candidate lists the period's subject.
const specialtyMatchScore = 2

// ExternalSubstitute is a roster entry for an outside substitute. Availability
// is keyed by weekday name ("Monday") and lists period ordinals.
type ExternalSubstitute struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Specialties       []string         `json:"specialties"`
	Availability      map[string][]int `json:"availability"`
	MaxDailyLoad      int              `json:"maxDailyLoad"`
	MaxWeeklyLoad     int              `json:"maxWeeklyLoad"`
	CurrentWeeklyLoad int              `json:"currentWeeklyLoad"`
	SpecialtyOnly     bool             `json:"specialtyOnly"`
	EmergencyOnly     bool             `json:"emergencyOnly"`
}

// InternalStaff is a roster entry for a staff member who may cover in a free
// period. Free periods are derived from the schedule index, not stored here;
// Unavailable removes periods the staff member has blocked for the weekday.
// MaxDailyLoad and MaxWeeklyLoad cap covers taken, not periods taught.
// CurrentWeeklyLoad is the number of covers already committed this week.
type InternalStaff struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Specialties       []string `json:"specialties"`
	MaxDailyLoad      int      `json:"maxDailyLoad"`
	MaxWeeklyLoad     int      `json:"maxWeeklyLoad"`
	CurrentWeeklyLoad int      `json:"currentWeeklyLoad"`
	EmergencyOnly     bool     `json:"emergencyOnly"`
	Unavailable       []int    `json:"unavailable,omitempty"`
}

// LoadLimits describes the cover ceilings a candidate runs under. Zero disables
// a ceiling. PriorWeekly counts covers committed earlier in the week.
type LoadLimits struct {
	Daily       int `json:"daily"`
	Weekly      int `json:"weekly"`
	PriorWeekly int `json:"priorWeekly"`
}

// Candidate is the uniform capability surface over the two roster variants.
// The set of implementations is closed to this package.
type Candidate interface {
	ID() string
	Name() string
	Kind() CandidateKind
	IsAvailable(period int) bool
	Availability() []int
	SpecialtyScore(subject string) int
	// CurrentLoad is the candidate's daily workload before any reservation in
	// this run. It only balances ranking; ceilings count covers.
	CurrentLoad() int
	Limits() LoadLimits
	EmergencyOnly() bool
	SpecialtyOnly() bool

	sealed()
}

type candidateBase struct {
	id          string
	name        string
	specialties map[string]struct{}
	available   map[int]struct{}
	periods     []int
}

func newCandidateBase(id, name string, specialties []string, periods []int) candidateBase {
	base := candidateBase{
		id:          id,
		name:        name,
		specialties: make(map[string]struct{}, len(specialties)),
		available:   make(map[int]struct{}, len(periods)),
	}
	for _, s := range specialties {
		if key := normaliseSubject(s); key != "" {
			base.specialties[key] = struct{}{}
		}
	}
	for _, p := range periods {
		if p <= 0 {
			continue
		}
		if _, seen := base.available[p]; seen {
			continue
		}
		base.available[p] = struct{}{}
		base.periods = append(base.periods, p)
	}
	sort.Ints(base.periods)
	return base
}

func (c *candidateBase) ID() string   { return c.id }
func (c *candidateBase) Name() string { return c.name }

func (c *candidateBase) IsAvailable(period int) bool {
	_, ok := c.available[period]
	return ok
}

func (c *candidateBase) Availability() []int {
	out := make([]int, len(c.periods))
	copy(out, c.periods)
	return out
}

func (c *candidateBase) SpecialtyScore(subject string) int {
	if _, ok := c.specialties[normaliseSubject(subject)]; ok {
		return specialtyMatchScore
	}
	return 0
}

func (c *candidateBase) sealed() {}

type externalCandidate struct {
	candidateBase
	src ExternalSubstitute
}

func (c *externalCandidate) Kind() CandidateKind { return KindExternal }
func (c *externalCandidate) CurrentLoad() int    { return 0 }
func (c *externalCandidate) EmergencyOnly() bool { return c.src.EmergencyOnly }
func (c *externalCandidate) SpecialtyOnly() bool { return c.src.SpecialtyOnly }

func (c *externalCandidate) Limits() LoadLimits {
	return LoadLimits{
		Daily:       c.src.MaxDailyLoad,
		Weekly:      c.src.MaxWeeklyLoad,
		PriorWeekly: c.src.CurrentWeeklyLoad,
	}
}

type internalCandidate struct {
	candidateBase
	src       InternalStaff
	scheduled int
}

func (c *internalCandidate) Kind() CandidateKind { return KindInternal }
func (c *internalCandidate) CurrentLoad() int    { return c.scheduled }
func (c *internalCandidate) EmergencyOnly() bool { return c.src.EmergencyOnly }
func (c *internalCandidate) SpecialtyOnly() bool { return false }

func (c *internalCandidate) Limits() LoadLimits {
	return LoadLimits{
		Daily:       c.src.MaxDailyLoad,
		Weekly:      c.src.MaxWeeklyLoad,
		PriorWeekly: c.src.CurrentWeeklyLoad,
	}
}

// NewExternalCandidate builds the per-day view of a substitute.
func NewExternalCandidate(src ExternalSubstitute, periods []int) Candidate {
	return &externalCandidate{
		candidateBase: newCandidateBase(src.ID, src.Name, src.Specialties, periods),
		src:           src,
	}
}

// NewInternalCandidate builds the per-day view of a staff member. scheduled is
// the number of periods the staff member already teaches that day.
func NewInternalCandidate(src InternalStaff, freePeriods []int, scheduled int) Candidate {
	return &internalCandidate{
		candidateBase: newCandidateBase(src.ID, src.Name, src.Specialties, freePeriods),
		src:           src,
		scheduled:     scheduled,
	}
}

func normaliseSubject(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
