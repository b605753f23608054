package coverage

import "sort"

type ownerDayKey struct {
	Owner   string
	DayType DayType
}

// ScheduleIndex answers "who teaches vs. who is free" for a period on a day type.
type ScheduleIndex struct {
	periods  []Period
	byNumber map[int]Period
	entries  map[ownerDayKey]map[int]ScheduleEntry
	owners   map[string]struct{}
	dupes    int
}

// NewScheduleIndex builds the index in a single pass over the entries. When
// periods is empty the school's period set is the union of periods seen in entries.
func NewScheduleIndex(entries []ScheduleEntry, periods []Period) *ScheduleIndex {
	idx := &ScheduleIndex{
		byNumber: make(map[int]Period),
		entries:  make(map[ownerDayKey]map[int]ScheduleEntry),
		owners:   make(map[string]struct{}),
	}
	for _, p := range periods {
		idx.addPeriod(p)
	}
	derive := len(periods) == 0

	for _, entry := range entries {
		if entry.OwnerID == "" || entry.Period.Ordinal <= 0 {
			continue
		}
		idx.owners[entry.OwnerID] = struct{}{}
		if derive {
			idx.addPeriod(entry.Period)
		}
		dayTypes := []DayType{entry.DayType}
		if entry.DayType == "" {
			dayTypes = []DayType{DayTypeA, DayTypeB}
		}
		for _, dt := range dayTypes {
			key := ownerDayKey{Owner: entry.OwnerID, DayType: dt}
			slots := idx.entries[key]
			if slots == nil {
				slots = make(map[int]ScheduleEntry)
				idx.entries[key] = slots
			}
			if _, exists := slots[entry.Period.Ordinal]; exists {
				idx.dupes++
				continue
			}
			slots[entry.Period.Ordinal] = entry
		}
	}

	for number, p := range idx.byNumber {
		idx.periods = append(idx.periods, Period{Ordinal: number, Label: p.Label})
	}
	sort.Slice(idx.periods, func(i, j int) bool {
		return idx.periods[i].Ordinal < idx.periods[j].Ordinal
	})
	return idx
}

func (idx *ScheduleIndex) addPeriod(p Period) {
	if p.Ordinal <= 0 {
		return
	}
	if existing, ok := idx.byNumber[p.Ordinal]; ok && existing.Label != "" {
		return
	}
	idx.byNumber[p.Ordinal] = p
}

// Periods returns the school's period set in ordinal order.
func (idx *ScheduleIndex) Periods() []Period {
	out := make([]Period, len(idx.periods))
	copy(out, idx.periods)
	return out
}

// Period resolves an ordinal to its labelled period.
func (idx *ScheduleIndex) Period(ordinal int) Period {
	if p, ok := idx.byNumber[ordinal]; ok {
		return Period{Ordinal: ordinal, Label: p.Label}
	}
	return Period{Ordinal: ordinal}
}

// HasOwner reports whether the owner has any schedule rows on any day type.
func (idx *ScheduleIndex) HasOwner(ownerID string) bool {
	_, ok := idx.owners[ownerID]
	return ok
}

// DuplicateEntries counts rows dropped because the slot was already filled.
func (idx *ScheduleIndex) DuplicateEntries() int {
	return idx.dupes
}

// EntryAt returns the owner's entry for a period, if any.
func (idx *ScheduleIndex) EntryAt(ownerID string, dayType DayType, ordinal int) (ScheduleEntry, bool) {
	entry, ok := idx.entries[ownerDayKey{Owner: ownerID, DayType: dayType}][ordinal]
	return entry, ok
}

// PeriodsTaughtBy returns the ordinals the owner teaches, ascending.
func (idx *ScheduleIndex) PeriodsTaughtBy(ownerID string, dayType DayType) []int {
	slots := idx.entries[ownerDayKey{Owner: ownerID, DayType: dayType}]
	taught := make([]int, 0, len(slots))
	for number, entry := range slots {
		if entry.IsTeaching {
			taught = append(taught, number)
		}
	}
	sort.Ints(taught)
	return taught
}

// FreePeriods returns the school periods the owner does not teach, ascending.
// Owners without rows for the day type have no free periods.
func (idx *ScheduleIndex) FreePeriods(ownerID string, dayType DayType) []int {
	slots, ok := idx.entries[ownerDayKey{Owner: ownerID, DayType: dayType}]
	if !ok {
		return []int{}
	}
	free := make([]int, 0, len(idx.periods))
	for _, p := range idx.periods {
		if entry, exists := slots[p.Ordinal]; exists && entry.IsTeaching {
			continue
		}
		free = append(free, p.Ordinal)
	}
	return free
}
