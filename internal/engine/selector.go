package engine

import "sort"

const (
	coverageWeight = 10
	balanceWeight  = 4
)

// Candidate is a scored unanswered symptom.
type Candidate struct {
	Symptom       Symptom
	Coverage      int
	ExpectedTrue  int
	ExpectedFalse int
	Score         int
}

// Candidates scores every unanswered symptom referenced by a still-possible
// rule, best first: score desc, priority_order asc, id asc.
func Candidates(snap *Snapshot, facts Facts) []Candidate {
	byID := make(map[uint]*Candidate)
	for _, r := range snap.Rules() {
		if Contradicts(r, facts) {
			continue
		}
		for _, c := range r.Conditions {
			if facts.Has(c.SymptomID) {
				continue
			}
			cand, ok := byID[c.SymptomID]
			if !ok {
				sym, _ := snap.Symptom(c.SymptomID)
				cand = &Candidate{Symptom: sym}
				byID[c.SymptomID] = cand
			}
			cand.Coverage++
			if c.Expected {
				cand.ExpectedTrue++
			} else {
				cand.ExpectedFalse++
			}
		}
	}

	out := make([]Candidate, 0, len(byID))
	for _, cand := range byID {
		cand.Score = coverageWeight*cand.Coverage + balanceWeight*min(cand.ExpectedTrue, cand.ExpectedFalse)
		out = append(out, *cand)
	}
	sort.Slice(out, func(i, j int) bool { return candidateLess(out[i], out[j]) })
	return out
}

func candidateLess(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Symptom.PriorityOrder != b.Symptom.PriorityOrder {
		return a.Symptom.PriorityOrder < b.Symptom.PriorityOrder
	}
	return a.Symptom.ID < b.Symptom.ID
}

// NextQuestion returns the most informative symptom to ask next. Among the
// top-scoring candidates an active symptom is preferred; when the top tier is
// entirely inactive its first member is returned so the session can progress.
// ok is false when no still-possible rule has an unanswered condition.
func NextQuestion(snap *Snapshot, facts Facts) (Symptom, bool) {
	cands := Candidates(snap, facts)
	if len(cands) == 0 {
		return Symptom{}, false
	}
	top := cands[0].Score
	for _, c := range cands {
		if c.Score != top {
			break
		}
		if c.Symptom.Active {
			return c.Symptom, true
		}
	}
	return cands[0].Symptom, true
}
