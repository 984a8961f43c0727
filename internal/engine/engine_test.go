package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	polyuria uint = iota + 1
	polydipsia
	weightLoss
	fatigue
	blurredVision
	slowHealing
)

func demoSymptoms() []Symptom {
	codes := []string{"polyuria", "polydipsia", "weight_loss", "fatigue", "blurred_vision", "slow_healing"}
	out := make([]Symptom, 0, len(codes))
	for i, code := range codes {
		out = append(out, Symptom{ID: uint(i + 1), Code: code, Question: code + "?", Active: true, PriorityOrder: i + 1})
	}
	return out
}

func demoRules() []Rule {
	return []Rule{
		{
			ID: 1, Name: "High Risk Diabetes Pattern", DiagnosisCode: "DIABETES_RISK", RiskLevel: "HIGH", Priority: 10, Active: true,
			Conditions: []Condition{{SymptomID: weightLoss, Expected: true}, {SymptomID: polyuria, Expected: true}, {SymptomID: polydipsia, Expected: true}},
		},
		{
			ID: 2, Name: "Moderate Risk Pattern", DiagnosisCode: "DIABETES_RISK", RiskLevel: "MODERATE", Priority: 5, Active: true,
			Conditions: []Condition{{SymptomID: polyuria, Expected: true}, {SymptomID: polydipsia, Expected: true}},
		},
	}
}

func demoAdvice() []Advice {
	return []Advice{
		{ID: 1, DiagnosisCode: "DIABETES_RISK", RiskLevel: "HIGH", Active: true},
		{ID: 2, DiagnosisCode: "DIABETES_RISK", RiskLevel: "MODERATE", Active: true},
	}
}

func demoSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(demoRules(), demoSymptoms(), demoAdvice())
	require.NoError(t, err)
	return snap
}

func TestEvaluate(t *testing.T) {
	rule := Rule{ID: 7, Conditions: []Condition{{SymptomID: 1, Expected: true}, {SymptomID: 2, Expected: false}}}
	cases := []struct {
		name  string
		facts Facts
		want  Evaluation
	}{
		{"empty", Facts{}, Possible{Missing: []uint{1, 2}}},
		{"partial", Facts{1: true}, Possible{Missing: []uint{2}}},
		{"contradicted first", Facts{1: false}, Impossible{Symptom: 1}},
		{"contradicted second", Facts{1: true, 2: true}, Impossible{Symptom: 2}},
		{"matched", Facts{1: true, 2: false, 9: true}, Matched{Conditions: []MatchedCondition{
			{SymptomID: 1, Expected: true, Actual: true},
			{SymptomID: 2, Expected: false, Actual: false},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(rule, tc.facts)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Evaluate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// allFactSets enumerates every partial assignment over ids.
func allFactSets(ids []uint) []Facts {
	out := []Facts{{}}
	for _, id := range ids {
		next := make([]Facts, 0, len(out)*3)
		for _, f := range out {
			next = append(next, f)
			yes := f.Clone()
			yes[id] = true
			no := f.Clone()
			no[id] = false
			next = append(next, yes, no)
		}
		out = next
	}
	return out
}

func isSubset(a, b Facts) bool {
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func TestEvaluateImpossibleIsMonotonic(t *testing.T) {
	sets := allFactSets([]uint{polyuria, polydipsia, weightLoss})
	for _, rule := range demoRules() {
		for _, small := range sets {
			if _, ok := Evaluate(rule, small).(Impossible); !ok {
				continue
			}
			for _, big := range sets {
				if !isSubset(small, big) {
					continue
				}
				if _, ok := Evaluate(rule, big).(Impossible); !ok {
					t.Fatalf("rule %d impossible on %v but not on superset %v", rule.ID, small, big)
				}
			}
		}
	}
}

func TestContradicts(t *testing.T) {
	rule := demoRules()[1]
	require.False(t, Contradicts(rule, Facts{}))
	require.False(t, Contradicts(rule, Facts{polyuria: true, fatigue: false}))
	require.True(t, Contradicts(rule, Facts{polydipsia: false}))
}

func TestNewSnapshotOrdersRulesAndConditions(t *testing.T) {
	rules := append(demoRules(), Rule{
		ID: 3, Name: "Same priority later id", DiagnosisCode: "X", RiskLevel: "LOW", Priority: 10, Active: true,
		Conditions: []Condition{{SymptomID: fatigue, Expected: true}},
	}, Rule{ID: 4, Name: "inactive", Priority: 99})
	snap, err := NewSnapshot(rules, demoSymptoms(), nil)
	require.NoError(t, err)

	var ids []uint
	for _, r := range snap.Rules() {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []uint{1, 3, 2}, ids)

	high, ok := snap.Rule(1)
	require.True(t, ok)
	require.Equal(t, []uint{polyuria, polydipsia, weightLoss}, []uint{
		high.Conditions[0].SymptomID, high.Conditions[1].SymptomID, high.Conditions[2].SymptomID,
	})
	_, ok = snap.Rule(4)
	require.False(t, ok)
}

func TestNewSnapshotRejectsBrokenRules(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"zero conditions", Rule{ID: 9, Name: "empty", Active: true}},
		{"duplicate condition", Rule{ID: 9, Name: "dup", Active: true, Conditions: []Condition{
			{SymptomID: polyuria, Expected: true}, {SymptomID: polyuria, Expected: false},
		}}},
		{"unknown symptom", Rule{ID: 9, Name: "dangling", Active: true, Conditions: []Condition{{SymptomID: 404, Expected: true}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSnapshot([]Rule{tc.rule}, demoSymptoms(), nil)
			require.ErrorIs(t, err, ErrInvalidKnowledgeBase)
		})
	}

	_, err := NewSnapshot([]Rule{{ID: 9, Name: "inactive empty"}}, demoSymptoms(), nil)
	require.NoError(t, err)
}

func TestNewSnapshotAmbiguousAdvice(t *testing.T) {
	advices := append(demoAdvice(),
		Advice{ID: 5, DiagnosisCode: "DIABETES_RISK", RiskLevel: "HIGH", Active: true},
		Advice{ID: 0, DiagnosisCode: "DIABETES_RISK", RiskLevel: "MODERATE", Active: false},
	)
	snap, err := NewSnapshot(demoRules(), demoSymptoms(), advices)
	require.NoError(t, err)

	id, ok := snap.AdviceFor("DIABETES_RISK", "HIGH")
	require.True(t, ok)
	require.Equal(t, uint(1), id)
	id, ok = snap.AdviceFor("DIABETES_RISK", "MODERATE")
	require.True(t, ok)
	require.Equal(t, uint(2), id)
	_, ok = snap.AdviceFor("DIABETES_RISK", "LOW")
	require.False(t, ok)

	want := []Anomaly{{Kind: AnomalyAmbiguousAdvice, DiagnosisCode: "DIABETES_RISK", RiskLevel: "HIGH", Candidates: []uint{1, 5}, Chosen: 1}}
	if diff := cmp.Diff(want, snap.Anomalies()); diff != "" {
		t.Fatalf("anomalies mismatch (-want +got):\n%s", diff)
	}
}
