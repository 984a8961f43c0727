package engine

import "github.com/yungbote/diagnosis-backend/internal/domain/kb"

// FromKB builds a snapshot from stored knowledge base rows. Rules must have
// their Conditions preloaded.
func FromKB(rules []kb.Rule, symptoms []kb.Symptom, advices []kb.Advice) (*Snapshot, error) {
	er := make([]Rule, 0, len(rules))
	for _, r := range rules {
		conds := make([]Condition, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, Condition{SymptomID: c.SymptomID, Expected: c.ExpectedValue, Explanation: c.ExplanationText})
		}
		er = append(er, Rule{
			ID:            r.ID,
			Name:          r.Name,
			DiagnosisCode: r.DiagnosisCode,
			RiskLevel:     r.RiskLevel,
			Priority:      r.Priority,
			Active:        r.IsActive,
			Explanation:   r.ExplanationText,
			Conditions:    conds,
		})
	}
	es := make([]Symptom, 0, len(symptoms))
	for _, s := range symptoms {
		es = append(es, SymptomFromKB(s))
	}
	ea := make([]Advice, 0, len(advices))
	for _, a := range advices {
		ea = append(ea, Advice{ID: a.ID, DiagnosisCode: a.DiagnosisCode, RiskLevel: a.RiskLevel, Active: a.IsActive})
	}
	return NewSnapshot(er, es, ea)
}

func SymptomFromKB(s kb.Symptom) Symptom {
	return Symptom{
		ID:            s.ID,
		Code:          s.Code,
		Question:      s.QuestionText,
		Category:      s.Category,
		InfoYes:       s.InfoYes,
		InfoNo:        s.InfoNo,
		Active:        s.IsActive,
		PriorityOrder: s.PriorityOrder,
	}
}
