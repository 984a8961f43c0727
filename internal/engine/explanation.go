package engine

import (
	"encoding/json"
	"fmt"
)

// Explanation is the persisted record of why a conclusion was reached.
// Marshal output depends only on the facts and the snapshot.
type Explanation struct {
	FiredRuleID       *uint              `json:"fired_rule_id"`
	FiredRuleName     *string            `json:"fired_rule_name"`
	MatchedConditions []MatchedCondition `json:"matched_conditions"`
	Facts             map[string]bool    `json:"facts"`
	AdviceID          *uint              `json:"advice_id"`
}

// Conclusion is a diagnosis ready to be committed.
type Conclusion struct {
	DiagnosisCode string
	RiskLevel     string
	Explanation   Explanation
}

const FallbackRiskLevel = "LOW"

// BuildExplanation records a fired rule, its matched conditions and the full
// fact snapshot.
func BuildExplanation(snap *Snapshot, rule Rule, matched []MatchedCondition, facts Facts) Conclusion {
	id := rule.ID
	name := rule.Name
	conds := make([]MatchedCondition, len(matched))
	copy(conds, matched)
	return Conclusion{
		DiagnosisCode: rule.DiagnosisCode,
		RiskLevel:     rule.RiskLevel,
		Explanation: Explanation{
			FiredRuleID:       &id,
			FiredRuleName:     &name,
			MatchedConditions: conds,
			Facts:             facts.stringKeyed(),
			AdviceID:          adviceRef(snap, rule.DiagnosisCode, rule.RiskLevel),
		},
	}
}

// FallbackExplanation concludes code at LOW risk with no fired rule.
func FallbackExplanation(snap *Snapshot, code string, facts Facts) Conclusion {
	return Conclusion{
		DiagnosisCode: code,
		RiskLevel:     FallbackRiskLevel,
		Explanation: Explanation{
			MatchedConditions: []MatchedCondition{},
			Facts:             facts.stringKeyed(),
			AdviceID:          adviceRef(snap, code, FallbackRiskLevel),
		},
	}
}

// Conclude turns a firing verdict into a conclusion.
func Conclude(snap *Snapshot, v Verdict, facts Facts) (Conclusion, bool) {
	if !v.Fires() || v.Rule == nil {
		return Conclusion{}, false
	}
	return BuildExplanation(snap, *v.Rule, v.Matched, facts), true
}

func adviceRef(snap *Snapshot, code, risk string) *uint {
	if snap == nil {
		return nil
	}
	id, ok := snap.AdviceFor(code, risk)
	if !ok {
		return nil
	}
	return &id
}

func (e Explanation) Marshal() ([]byte, error) {
	if e.MatchedConditions == nil {
		e.MatchedConditions = []MatchedCondition{}
	}
	if e.Facts == nil {
		e.Facts = map[string]bool{}
	}
	return json.Marshal(e)
}

func ParseExplanation(raw []byte) (Explanation, error) {
	var e Explanation
	if len(raw) == 0 {
		return e, fmt.Errorf("empty explanation")
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("decode explanation: %w", err)
	}
	return e, nil
}

// Fallback reports whether no rule fired.
func (e Explanation) Fallback() bool { return e.FiredRuleID == nil }
