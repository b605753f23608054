package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleIndexFreePeriodsComplementTeaching(t *testing.T) {
	entries := []ScheduleEntry{
		{OwnerID: "t1", Period: Period{Ordinal: 1}, DayType: DayTypeA, Subject: "Math", IsTeaching: true},
		{OwnerID: "t1", Period: Period{Ordinal: 3}, DayType: DayTypeA, Subject: "Math", IsTeaching: true},
		{OwnerID: "t1", Period: Period{Ordinal: 4}, DayType: DayTypeA, Subject: "Duty", IsTeaching: false},
		{OwnerID: "t1", Period: Period{Ordinal: 2}, DayType: DayTypeB, Subject: "Math", IsTeaching: true},
	}
	idx := NewScheduleIndex(entries, schoolDay())

	taught := idx.PeriodsTaughtBy("t1", DayTypeA)
	free := idx.FreePeriods("t1", DayTypeA)
	assert.Equal(t, []int{1, 3}, taught)
	assert.Equal(t, []int{2, 4, 5, 6}, free)
	assert.Len(t, append(taught, free...), len(idx.Periods()))

	assert.Equal(t, []int{2}, idx.PeriodsTaughtBy("t1", DayTypeB))
	assert.Empty(t, idx.FreePeriods("nobody", DayTypeA))
	assert.True(t, idx.HasOwner("t1"))
	assert.False(t, idx.HasOwner("nobody"))
}

func TestScheduleIndexDerivesPeriodsAndAppliesUntypedRowsToBothDays(t *testing.T) {
	entries := []ScheduleEntry{
		{OwnerID: "t1", Period: Period{Ordinal: 5, Label: "Fifth"}, Subject: "Art", IsTeaching: true},
		{OwnerID: "t2", Period: Period{Ordinal: 2}, DayType: DayTypeB, Subject: "PE", IsTeaching: true},
		{OwnerID: "", Period: Period{Ordinal: 9}, IsTeaching: true},
		{OwnerID: "t3", Period: Period{Ordinal: 0}, IsTeaching: true},
	}
	idx := NewScheduleIndex(entries, nil)

	require.Len(t, idx.Periods(), 2)
	assert.Equal(t, Period{Ordinal: 5, Label: "Fifth"}, idx.Period(5))
	assert.Equal(t, []int{5}, idx.PeriodsTaughtBy("t1", DayTypeA))
	assert.Equal(t, []int{5}, idx.PeriodsTaughtBy("t1", DayTypeB))
	assert.Equal(t, []int{2}, idx.FreePeriods("t1", DayTypeA))
	assert.False(t, idx.HasOwner("t3"))
}

func TestScheduleIndexCountsDuplicates(t *testing.T) {
	entries := []ScheduleEntry{
		{OwnerID: "t1", Period: Period{Ordinal: 1}, DayType: DayTypeA, Subject: "Math", Room: "101", IsTeaching: true},
		{OwnerID: "t1", Period: Period{Ordinal: 1}, DayType: DayTypeA, Subject: "Physics", Room: "102", IsTeaching: true},
	}
	idx := NewScheduleIndex(entries, nil)

	assert.Equal(t, 1, idx.DuplicateEntries())
	entry, ok := idx.EntryAt("t1", DayTypeA, 1)
	require.True(t, ok)
	assert.Equal(t, "Math", entry.Subject)
	_, ok = idx.EntryAt("t1", DayTypeA, 2)
	assert.False(t, ok)
}
