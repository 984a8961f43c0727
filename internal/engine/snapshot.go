package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is an immutable view of the knowledge base used for one or more
// evaluations. Build it with NewSnapshot; never mutate the returned value.
type Snapshot struct {
	rules     []Rule
	ruleByID  map[uint]Rule
	symptoms  map[uint]Symptom
	advice    map[adviceKey]uint
	anomalies []Anomaly
}

type adviceKey struct {
	code string
	risk string
}

// Anomaly records a knowledge base defect that was resolved deterministically
// rather than rejected.
type Anomaly struct {
	Kind          string
	DiagnosisCode string
	RiskLevel     string
	Candidates    []uint
	Chosen        uint
}

const AnomalyAmbiguousAdvice = "ambiguous_advice"

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %s/%s candidates=%v chosen=%d", a.Kind, a.DiagnosisCode, a.RiskLevel, a.Candidates, a.Chosen)
}

// NewSnapshot validates and indexes the knowledge base. Active rules are kept
// ordered by priority desc, id asc with conditions ordered by symptom id.
// A zero-condition rule, a duplicate condition or a condition on an unknown
// symptom fails with ErrInvalidKnowledgeBase.
func NewSnapshot(rules []Rule, symptoms []Symptom, advices []Advice) (*Snapshot, error) {
	s := &Snapshot{
		ruleByID: make(map[uint]Rule, len(rules)),
		symptoms: make(map[uint]Symptom, len(symptoms)),
		advice:   make(map[adviceKey]uint),
	}
	for _, sym := range symptoms {
		if _, dup := s.symptoms[sym.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate symptom id %d", ErrInvalidKnowledgeBase, sym.ID)
		}
		s.symptoms[sym.ID] = sym
	}

	var problems []string
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if len(r.Conditions) == 0 {
			problems = append(problems, fmt.Sprintf("rule %d (%s) has no conditions", r.ID, r.Name))
			continue
		}
		conds := make([]Condition, len(r.Conditions))
		copy(conds, r.Conditions)
		sort.Slice(conds, func(i, j int) bool { return conds[i].SymptomID < conds[j].SymptomID })
		for i, c := range conds {
			if i > 0 && conds[i-1].SymptomID == c.SymptomID {
				problems = append(problems, fmt.Sprintf("rule %d (%s) has duplicate condition on symptom %d", r.ID, r.Name, c.SymptomID))
			}
			if _, ok := s.symptoms[c.SymptomID]; !ok {
				problems = append(problems, fmt.Sprintf("rule %d (%s) references unknown symptom %d", r.ID, r.Name, c.SymptomID))
			}
		}
		r.Conditions = conds
		s.rules = append(s.rules, r)
		s.ruleByID[r.ID] = r
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKnowledgeBase, strings.Join(problems, "; "))
	}
	sort.SliceStable(s.rules, func(i, j int) bool {
		if s.rules[i].Priority != s.rules[j].Priority {
			return s.rules[i].Priority > s.rules[j].Priority
		}
		return s.rules[i].ID < s.rules[j].ID
	})

	grouped := make(map[adviceKey][]uint)
	for _, a := range advices {
		if !a.Active {
			continue
		}
		k := adviceKey{code: a.DiagnosisCode, risk: a.RiskLevel}
		grouped[k] = append(grouped[k], a.ID)
	}
	for k, ids := range grouped {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		s.advice[k] = ids[0]
		if len(ids) > 1 {
			s.anomalies = append(s.anomalies, Anomaly{
				Kind:          AnomalyAmbiguousAdvice,
				DiagnosisCode: k.code,
				RiskLevel:     k.risk,
				Candidates:    ids,
				Chosen:        ids[0],
			})
		}
	}
	sort.Slice(s.anomalies, func(i, j int) bool {
		a, b := s.anomalies[i], s.anomalies[j]
		if a.DiagnosisCode != b.DiagnosisCode {
			return a.DiagnosisCode < b.DiagnosisCode
		}
		return a.RiskLevel < b.RiskLevel
	})
	return s, nil
}

// Rules returns the active rules in firing order.
func (s *Snapshot) Rules() []Rule { return s.rules }

func (s *Snapshot) Rule(id uint) (Rule, bool) {
	r, ok := s.ruleByID[id]
	return r, ok
}

func (s *Snapshot) Symptom(id uint) (Symptom, bool) {
	sym, ok := s.symptoms[id]
	return sym, ok
}

// AdviceFor resolves the active advice for a conclusion, lowest id first.
func (s *Snapshot) AdviceFor(code, risk string) (uint, bool) {
	id, ok := s.advice[adviceKey{code: code, risk: risk}]
	return id, ok
}

func (s *Snapshot) Anomalies() []Anomaly { return s.anomalies }
