package kbseed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/diagnosis-backend/internal/engine"
)

func TestDemoIsValid(t *testing.T) {
	f, err := Demo()
	require.NoError(t, err)
	require.Len(t, f.Symptoms, 6)
	require.Len(t, f.Rules, 2)
	require.Len(t, f.Advice, 2)
	require.NoError(t, f.Validate())

	snap, err := f.Snapshot()
	require.NoError(t, err)
	require.Empty(t, snap.Anomalies())

	rules := snap.Rules()
	require.Len(t, rules, 2)
	require.Equal(t, "High Risk Diabetes Pattern", rules[0].Name)
	require.Len(t, rules[0].Conditions, 3)

	next, ok := engine.NextQuestion(snap, engine.Facts{})
	require.True(t, ok)
	require.Equal(t, "polyuria", next.Code)
}

func TestDemoHighPathFires(t *testing.T) {
	f, err := Demo()
	require.NoError(t, err)
	snap, err := f.Snapshot()
	require.NoError(t, err)

	v := engine.Decide(snap, engine.Facts{1: true, 2: true, 3: true})
	require.True(t, v.Fires())
	require.Equal(t, "HIGH", v.Rule.RiskLevel)
	adviceID, ok := snap.AdviceFor("DIABETES_RISK", "HIGH")
	require.True(t, ok)
	require.Equal(t, uint(1), adviceID)
}

func TestValidateRejectsBrokenRules(t *testing.T) {
	raw := []byte(`
symptoms:
  - code: a
    question: A?
rules:
  - name: empty
    diagnosis_code: X
    risk_level: LOW
  - name: dangling
    diagnosis_code: X
    risk_level: LOW
    active: false
    conditions:
      - symptom: missing
        expected: true
      - symptom: a
        expected: true
      - symptom: a
        expected: false
advice:
  - diagnosis_code: X
    risk_level: LOW
    title: t
    severity: LOUD
`)
	f, err := Parse(raw)
	require.NoError(t, err)
	err = f.Validate()
	require.ErrorIs(t, err, engine.ErrInvalidKnowledgeBase)
	for _, want := range []string{
		`rule "empty" has no conditions`,
		`rule "dangling" references unknown symptom "missing"`,
		`rule "dangling" has duplicate condition on "a"`,
		`unknown severity "LOUD"`,
	} {
		require.Contains(t, err.Error(), want)
	}

	_, err = f.Snapshot()
	require.Error(t, err)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("symptoms:\n  - code: a\n    colour: red\n"))
	require.Error(t, err)
}

func TestActiveDefaultsToTrue(t *testing.T) {
	off := false
	require.True(t, Symptom{Code: "a"}.Model().IsActive)
	require.False(t, Symptom{Code: "a", Active: &off}.Model().IsActive)
}
