package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPoolFiltersAndOrdersCandidates(t *testing.T) {
	schedule := append(teaching("absent", "Math", 1), teaching("busy", "Math", 1, 2, 3, 4, 5, 6)...)
	schedule = append(schedule, teaching("free", "Art", 1)...)
	idx := NewScheduleIndex(schedule, schoolDay())

	pool := BuildPool(PoolInput{
		Date:     monday(),
		DayType:  DayTypeA,
		Absences: []Absence{absence("abs-1", "absent")},
		Substitutes: []ExternalSubstitute{
			substitute("sub-z", []int{2}),
			{ID: "sub-tuesday", Availability: map[string][]int{"Tuesday": {1}}},
			{ID: "sub-lower", Availability: map[string][]int{" monday ": {4}}},
			substitute("sub-z", []int{5}),
		},
		Staff: []InternalStaff{
			{ID: "absent"},
			{ID: "busy"},
			{ID: "free", Unavailable: []int{6}},
		},
		Index: idx,
	})

	ids := make([]string, 0, len(pool))
	for _, c := range pool {
		ids = append(ids, c.ID())
	}
	assert.Equal(t, []string{"free", "sub-lower", "sub-z"}, ids)
	assert.Equal(t, []int{2}, pool[2].Availability())
	assert.Equal(t, []int{4}, pool[1].Availability())
	assert.Equal(t, []int{2, 3, 4, 5}, pool[0].Availability())
	assert.Equal(t, 1, pool[0].CurrentLoad())
	assert.Equal(t, KindInternal, pool[0].Kind())
}

func TestCandidateSpecialtyScoreIsCaseInsensitive(t *testing.T) {
	c := NewExternalCandidate(ExternalSubstitute{ID: "s1", Specialties: []string{" Chemistry "}}, []int{3, 1})

	assert.Equal(t, specialtyMatchScore, c.SpecialtyScore("chemistry"))
	assert.Equal(t, 0, c.SpecialtyScore("Biology"))
	assert.Equal(t, 0, c.SpecialtyScore(""))
	assert.True(t, c.IsAvailable(1))
	assert.False(t, c.IsAvailable(2))
	require.Equal(t, []int{1, 3}, c.Availability())
}

func TestEmergencyFlagPolicy(t *testing.T) {
	plain := NewExternalCandidate(ExternalSubstitute{ID: "a"}, []int{1})
	flagged := NewExternalCandidate(ExternalSubstitute{ID: "b", EmergencyOnly: true}, []int{1})
	strict := NewExternalCandidate(ExternalSubstitute{ID: "c", SpecialtyOnly: true}, []int{1})

	need := Need{AbsenceID: "abs", Period: Period{Ordinal: 1}, Subject: "Math"}
	assert.False(t, EmergencyFlagPolicy(plain, need))
	assert.True(t, EmergencyFlagPolicy(flagged, need))
	assert.True(t, EmergencyFlagPolicy(strict, need))
	assert.False(t, NoOverridePolicy(flagged, need))
}
