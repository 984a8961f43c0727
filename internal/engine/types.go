package engine

import (
	"sort"
	"strconv"
)

// Facts are the answers recorded so far for one assessment, keyed by symptom id.
type Facts map[uint]bool

// Clone returns an independent copy.
func (f Facts) Clone() Facts {
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Has reports whether the symptom has been answered.
func (f Facts) Has(symptomID uint) bool {
	_, ok := f[symptomID]
	return ok
}

// IDs returns the answered symptom ids in ascending order.
func (f Facts) IDs() []uint {
	ids := make([]uint, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f Facts) stringKeyed() map[string]bool {
	out := make(map[string]bool, len(f))
	for k, v := range f {
		out[strconv.FormatUint(uint64(k), 10)] = v
	}
	return out
}

type Symptom struct {
	ID            uint
	Code          string
	Question      string
	Category      string
	InfoYes       string
	InfoNo        string
	Active        bool
	PriorityOrder int
}

type Condition struct {
	SymptomID   uint
	Expected    bool
	Explanation string
}

type Rule struct {
	ID            uint
	Name          string
	DiagnosisCode string
	RiskLevel     string
	Priority      int
	Active        bool
	Explanation   string
	Conditions    []Condition
}

type Advice struct {
	ID            uint
	DiagnosisCode string
	RiskLevel     string
	Active        bool
}

// MatchedCondition is one satisfied condition of a fired rule.
type MatchedCondition struct {
	SymptomID uint `json:"symptom_id"`
	Expected  bool `json:"expected"`
	Actual    bool `json:"actual"`
}
