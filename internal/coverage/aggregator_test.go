package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

func covered(absenceID string, period int, candidateID string) AssignmentDecision {
	return AssignmentDecision{
		AbsenceID:     absenceID,
		Period:        Period{Ordinal: period},
		CandidateID:   candidateID,
		CandidateKind: KindExternal,
		MatchQuality:  MatchGeneral,
	}
}

func TestAggregatorRejectsConflicts(t *testing.T) {
	agg := NewAggregator([]Absence{absence("a1", "t1"), absence("a2", "t2")}, map[string]int{"a1": 1, "a2": 1})

	require.NoError(t, agg.Record(covered("a1", 1, "s1")))

	err := agg.Record(covered("a1", 1, "s2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConstraintConflict.Code, appErrors.FromError(err).Code)

	err = agg.Record(covered("a2", 1, "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double-booked")
}

func TestAggregatorOutcomesAndMetrics(t *testing.T) {
	agg := NewAggregator(
		[]Absence{absence("a2", "t2"), absence("a1", "t1"), absence("a3", "t3")},
		map[string]int{"a1": 2, "a2": 1},
	)
	require.NoError(t, agg.Record(covered("a2", 3, "s1")))
	require.NoError(t, agg.Record(covered("a1", 2, "s2")))
	require.NoError(t, agg.Record(AssignmentDecision{AbsenceID: "a1", TeacherID: "t1", Period: Period{Ordinal: 1}, MatchQuality: MatchUncovered}))

	decisions := agg.Decisions()
	require.Len(t, decisions, 3)
	assert.Equal(t, "a1", decisions[0].AbsenceID)
	assert.Equal(t, 1, decisions[0].Period.Ordinal)

	unresolved := agg.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "t1", unresolved[0].TeacherID)

	outcomes := agg.Outcomes()
	require.Len(t, outcomes, 3)
	assert.Equal(t, AbsenceStatusPartiallyResolved, outcomes[0].Status)
	assert.Equal(t, AbsenceStatusResolved, outcomes[1].Status)
	assert.Equal(t, AbsenceStatusResolved, outcomes[2].Status)

	metrics := agg.Metrics(7, 4, 12)
	assert.Equal(t, 3, metrics.TotalPeriodsNeeded)
	assert.Equal(t, 2, metrics.TotalPeriodsCovered)
	assert.Equal(t, 7, metrics.TotalCandidatesEvaluated)
	assert.Equal(t, 4, metrics.PoolSize)
	assert.InDelta(t, 2.0/3.0, metrics.CoverageRate, 0.0001)
}
