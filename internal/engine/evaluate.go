package engine

// Evaluation is the status of one rule against a set of facts. It is one of
// Matched, Possible or Impossible.
type Evaluation interface {
	isEvaluation()
}

// Matched means every condition has a fact equal to its expected value.
type Matched struct {
	Conditions []MatchedCondition
}

// Possible means nothing contradicts the rule yet but some conditions are unanswered.
type Possible struct {
	Missing []uint
}

// Impossible means Symptom was answered against the rule. It stays impossible
// as more facts are added.
type Impossible struct {
	Symptom uint
}

func (Matched) isEvaluation()    {}
func (Possible) isEvaluation()   {}
func (Impossible) isEvaluation() {}

// Evaluate classifies rule against facts. Conditions are visited in order and
// the first contradiction wins.
func Evaluate(rule Rule, facts Facts) Evaluation {
	var missing []uint
	matched := make([]MatchedCondition, 0, len(rule.Conditions))
	for _, c := range rule.Conditions {
		actual, ok := facts[c.SymptomID]
		if !ok {
			missing = append(missing, c.SymptomID)
			continue
		}
		if actual != c.Expected {
			return Impossible{Symptom: c.SymptomID}
		}
		matched = append(matched, MatchedCondition{SymptomID: c.SymptomID, Expected: c.Expected, Actual: actual})
	}
	if len(missing) > 0 {
		return Possible{Missing: missing}
	}
	return Matched{Conditions: matched}
}

// Contradicts reports whether some answered fact rules the rule out.
func Contradicts(rule Rule, facts Facts) bool {
	for _, c := range rule.Conditions {
		if actual, ok := facts[c.SymptomID]; ok && actual != c.Expected {
			return true
		}
	}
	return false
}
