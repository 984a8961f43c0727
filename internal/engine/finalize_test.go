package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideHighRiskScenario(t *testing.T) {
	snap := demoSnapshot(t)
	facts := Facts{}

	q, ok := NextQuestion(snap, facts)
	require.True(t, ok)
	require.Equal(t, polyuria, q.ID)
	facts[q.ID] = true
	require.Equal(t, ReasonNoMatch, Decide(snap, facts).Reason)

	q, ok = NextQuestion(snap, facts)
	require.True(t, ok)
	require.Equal(t, polydipsia, q.ID)
	facts[q.ID] = true

	v := Decide(snap, facts)
	require.Equal(t, ReasonHigherPriorityPending, v.Reason)
	require.NotNil(t, v.Blocking)
	require.Equal(t, uint(1), v.Blocking.ID)
	require.Nil(t, v.Rule)
	require.NotNil(t, v.Candidate)
	require.Equal(t, uint(2), v.Candidate.ID)

	q, ok = NextQuestion(snap, facts)
	require.True(t, ok)
	require.Equal(t, weightLoss, q.ID)
	facts[q.ID] = true

	v = Decide(snap, facts)
	require.True(t, v.Fires())
	require.Equal(t, uint(1), v.Rule.ID)
	require.Equal(t, "HIGH", v.Rule.RiskLevel)
	require.Len(t, v.Matched, 3)

	c, ok := Conclude(snap, v, facts)
	require.True(t, ok)
	require.Equal(t, "DIABETES_RISK", c.DiagnosisCode)
	require.NotNil(t, c.Explanation.AdviceID)
	require.Equal(t, uint(1), *c.Explanation.AdviceID)
}

func TestDecideModerateWhenHighIsRuledOut(t *testing.T) {
	snap := demoSnapshot(t)
	v := Decide(snap, Facts{polyuria: true, polydipsia: true, weightLoss: false})
	require.True(t, v.Fires())
	require.Equal(t, uint(2), v.Rule.ID)
	require.Equal(t, "MODERATE", v.Rule.RiskLevel)
}

func TestDecideWaitsForMoreSpecificRule(t *testing.T) {
	rules := []Rule{
		{ID: 1, Name: "short", DiagnosisCode: "A", RiskLevel: "LOW", Priority: 5, Active: true,
			Conditions: []Condition{{SymptomID: fatigue, Expected: true}}},
		{ID: 2, Name: "long", DiagnosisCode: "A", RiskLevel: "MODERATE", Priority: 5, Active: true,
			Conditions: []Condition{{SymptomID: fatigue, Expected: true}, {SymptomID: slowHealing, Expected: true}}},
	}
	snap, err := NewSnapshot(rules, demoSymptoms(), nil)
	require.NoError(t, err)

	v := Decide(snap, Facts{fatigue: true})
	require.Equal(t, ReasonMoreSpecificPending, v.Reason)
	require.Equal(t, uint(2), v.Blocking.ID)
	require.Equal(t, uint(1), v.Candidate.ID)

	v = Decide(snap, Facts{fatigue: true, slowHealing: false})
	require.True(t, v.Fires())
	require.Nil(t, v.Candidate)
	require.Equal(t, uint(1), v.Rule.ID)

	v = Decide(snap, Facts{fatigue: true, slowHealing: true})
	require.True(t, v.Fires())
	require.Equal(t, uint(1), v.Rule.ID, "equal priority keeps lowest id among matched rules")
}

func TestDecideNoRules(t *testing.T) {
	snap, err := NewSnapshot(nil, demoSymptoms(), nil)
	require.NoError(t, err)
	require.Equal(t, ReasonNoMatch, Decide(snap, Facts{polyuria: true}).Reason)
	_, ok := NextQuestion(snap, Facts{})
	require.False(t, ok)
}

// Every reachable session ends with either a fired rule or no question left.
func TestEveryPathTerminates(t *testing.T) {
	snap := demoSnapshot(t)
	var walk func(facts Facts, depth int)
	walk = func(facts Facts, depth int) {
		if depth > len(demoSymptoms()) {
			t.Fatalf("no termination after %d answers: %v", depth, facts)
		}
		if Decide(snap, facts).Fires() {
			return
		}
		q, ok := NextQuestion(snap, facts)
		if !ok {
			c := FallbackExplanation(snap, "DIABETES_RISK", facts)
			require.Equal(t, FallbackRiskLevel, c.RiskLevel)
			return
		}
		for _, ans := range []bool{true, false} {
			next := facts.Clone()
			next[q.ID] = ans
			walk(next, depth+1)
		}
	}
	walk(Facts{}, 0)
}
