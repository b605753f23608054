package coverage

import (
	"sort"
	"sync"
)

// CandidateLoad is the end-of-run load for one candidate. LoadCount is the
// number of covers taken in the run; ScheduledLoad is the teaching load the
// candidate already carried that day.
type CandidateLoad struct {
	CandidateID   string `json:"candidateId"`
	Periods       []int  `json:"periods"`
	LoadCount     int    `json:"loadCount"`
	ScheduledLoad int    `json:"scheduledLoad,omitempty"`
	WeeklyLoad    int    `json:"weeklyLoad,omitempty"`
	MaxDaily      int    `json:"maxDaily,omitempty"`
	MaxWeekly     int    `json:"maxWeekly,omitempty"`
}

type candidateLoad struct {
	limits    LoadLimits
	scheduled int
	reserved  map[int]struct{}
}

func (l *candidateLoad) covers() int {
	return len(l.reserved)
}

// workload feeds the balancing term: taught periods plus covers.
func (l *candidateLoad) workload() int {
	return l.scheduled + l.covers()
}

func (l *candidateLoad) fits() bool {
	if l.limits.Daily > 0 && l.covers()+1 > l.limits.Daily {
		return false
	}
	if l.limits.Weekly > 0 && l.limits.PriorWeekly+l.covers()+1 > l.limits.Weekly {
		return false
	}
	return true
}

// LoadTracker is run-scoped reservation and load state. It is safe for
// concurrent use; TryReserve is the only mutation.
type LoadTracker struct {
	mu    sync.Mutex
	loads map[string]*candidateLoad
}

// NewLoadTracker seeds a tracker with each candidate's limits and baseline
// workload. Cover ceilings start at zero covers.
func NewLoadTracker(pool []Candidate) *LoadTracker {
	t := &LoadTracker{loads: make(map[string]*candidateLoad, len(pool))}
	for _, c := range pool {
		t.loads[c.ID()] = &candidateLoad{
			limits:    c.Limits(),
			scheduled: c.CurrentLoad(),
			reserved:  make(map[int]struct{}),
		}
	}
	return t
}

// TryReserve claims the period for the candidate. It fails when the period is
// already reserved for that candidate or a load ceiling would be exceeded.
func (t *LoadTracker) TryReserve(candidateID string, period int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	load, ok := t.loads[candidateID]
	if !ok {
		return false
	}
	if _, taken := load.reserved[period]; taken {
		return false
	}
	if !load.fits() {
		return false
	}
	load.reserved[period] = struct{}{}
	return true
}

// CanTake reports whether TryReserve would currently succeed.
func (t *LoadTracker) CanTake(candidateID string, period int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	load, ok := t.loads[candidateID]
	if !ok {
		return false
	}
	if _, taken := load.reserved[period]; taken {
		return false
	}
	return load.fits()
}

// Reserved reports whether the candidate already holds the period.
func (t *LoadTracker) Reserved(candidateID string, period int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	load, ok := t.loads[candidateID]
	if !ok {
		return false
	}
	_, taken := load.reserved[period]
	return taken
}

// Load returns the candidate's current daily workload, taught periods included.
func (t *LoadTracker) Load(candidateID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if load, ok := t.loads[candidateID]; ok {
		return load.workload()
	}
	return 0
}

// Covers returns the number of periods the candidate has covered in this run.
func (t *LoadTracker) Covers(candidateID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if load, ok := t.loads[candidateID]; ok {
		return load.covers()
	}
	return 0
}

// LoadAfter returns the daily workload the candidate would carry after one more reservation.
func (t *LoadTracker) LoadAfter(candidateID string) int {
	return t.Load(candidateID) + 1
}

// Snapshot returns loads for candidates that received at least one reservation.
func (t *LoadTracker) Snapshot() []CandidateLoad {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CandidateLoad, 0)
	for id, load := range t.loads {
		if len(load.reserved) == 0 {
			continue
		}
		periods := make([]int, 0, len(load.reserved))
		for p := range load.reserved {
			periods = append(periods, p)
		}
		sort.Ints(periods)
		entry := CandidateLoad{
			CandidateID:   id,
			Periods:       periods,
			LoadCount:     load.covers(),
			ScheduledLoad: load.scheduled,
			MaxDaily:      load.limits.Daily,
			MaxWeekly:     load.limits.Weekly,
		}
		if load.limits.Weekly > 0 {
			entry.WeeklyLoad = load.limits.PriorWeekly + load.covers()
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CandidateID < out[j].CandidateID
	})
	return out
}
