package engine

type Reason string

const (
	ReasonNoMatch               Reason = "no_match"
	ReasonHigherPriorityPending Reason = "higher_priority_pending"
	ReasonMoreSpecificPending   Reason = "more_specific_pending"
	ReasonFire                  Reason = "fire"
)

// Verdict is the outcome of Decide. Rule and Matched are set only when
// Reason is ReasonFire. When a match is held back, Candidate is the matched
// rule and Blocking the pending rule that outranks it.
type Verdict struct {
	Reason    Reason
	Rule      *Rule
	Matched   []MatchedCondition
	Candidate *Rule
	Blocking  *Rule
}

func (v Verdict) Fires() bool { return v.Reason == ReasonFire }

// Decide picks the rule that may fire now. The first matched rule in firing
// order is held back while a still-possible rule has a strictly higher
// priority, or the same priority and strictly more conditions.
func Decide(snap *Snapshot, facts Facts) Verdict {
	rules := snap.Rules()
	evals := make([]Evaluation, len(rules))
	best := -1
	var matched []MatchedCondition
	for i, r := range rules {
		evals[i] = Evaluate(r, facts)
		if m, ok := evals[i].(Matched); ok && best < 0 {
			best = i
			matched = m.Conditions
		}
	}
	if best < 0 {
		return Verdict{Reason: ReasonNoMatch}
	}
	winner := rules[best]

	for i, r := range rules {
		if _, ok := evals[i].(Possible); ok && r.Priority > winner.Priority {
			blocking := r
			return Verdict{Reason: ReasonHigherPriorityPending, Candidate: &winner, Blocking: &blocking}
		}
	}
	for i, r := range rules {
		if _, ok := evals[i].(Possible); ok && r.Priority == winner.Priority && len(r.Conditions) > len(winner.Conditions) {
			blocking := r
			return Verdict{Reason: ReasonMoreSpecificPending, Candidate: &winner, Blocking: &blocking}
		}
	}
	return Verdict{Reason: ReasonFire, Rule: &winner, Matched: matched}
}
