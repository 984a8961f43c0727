// Package kbseed reads knowledge base definitions from YAML. Symptoms are
// referenced by code so a file can be imported into any database.
package kbseed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/engine"
)

//go:embed demo.yaml
var demoYAML []byte

type File struct {
	Symptoms []Symptom `yaml:"symptoms"`
	Rules    []Rule    `yaml:"rules"`
	Advice   []Advice  `yaml:"advice"`
}

type Symptom struct {
	Code          string `yaml:"code"`
	Question      string `yaml:"question"`
	Category      string `yaml:"category"`
	PriorityOrder int    `yaml:"priority_order"`
	// Active defaults to true when omitted.
	Active  *bool  `yaml:"active"`
	InfoYes string `yaml:"info_yes"`
	InfoNo  string `yaml:"info_no"`
}

type Rule struct {
	Name          string      `yaml:"name"`
	DiagnosisCode string      `yaml:"diagnosis_code"`
	RiskLevel     string      `yaml:"risk_level"`
	Priority      int         `yaml:"priority"`
	Active        *bool       `yaml:"active"`
	Explanation   string      `yaml:"explanation"`
	Conditions    []Condition `yaml:"conditions"`
}

type Condition struct {
	Symptom     string `yaml:"symptom"`
	Expected    bool   `yaml:"expected"`
	Explanation string `yaml:"explanation"`
}

type Advice struct {
	DiagnosisCode string `yaml:"diagnosis_code"`
	RiskLevel     string `yaml:"risk_level"`
	Title         string `yaml:"title"`
	Content       string `yaml:"content"`
	Severity      string `yaml:"severity"`
	Active        *bool  `yaml:"active"`
}

func active(b *bool) bool { return b == nil || *b }

// Demo returns the embedded diabetes screening knowledge base.
func Demo() (*File, error) {
	return Parse(demoYAML)
}

// Load reads path, or the embedded demo when path is empty.
func Load(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Demo()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kb file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse kb yaml: %w", err)
	}
	return &f, nil
}

// Validate checks the whole file, inactive rules included, and reports every
// problem at once. Structural defects wrap engine.ErrInvalidKnowledgeBase.
func (f *File) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: empty file", engine.ErrInvalidKnowledgeBase)
	}
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{engine.ErrInvalidKnowledgeBase}, args...)...))
	}

	codes := make(map[string]bool, len(f.Symptoms))
	for i, s := range f.Symptoms {
		code := strings.TrimSpace(s.Code)
		switch {
		case code == "":
			bad("symptom #%d has no code", i+1)
		case codes[code]:
			bad("duplicate symptom code %q", code)
		}
		if strings.TrimSpace(s.Question) == "" {
			bad("symptom %q has no question", code)
		}
		codes[code] = true
	}

	names := make(map[string]bool, len(f.Rules))
	for i, r := range f.Rules {
		name := strings.TrimSpace(r.Name)
		switch {
		case name == "":
			bad("rule #%d has no name", i+1)
		case names[name]:
			bad("duplicate rule name %q", name)
		}
		names[name] = true
		if strings.TrimSpace(r.DiagnosisCode) == "" || strings.TrimSpace(r.RiskLevel) == "" {
			bad("rule %q needs diagnosis_code and risk_level", name)
		}
		if len(r.Conditions) == 0 {
			bad("rule %q has no conditions", name)
		}
		seen := map[string]bool{}
		for _, c := range r.Conditions {
			code := strings.TrimSpace(c.Symptom)
			if !codes[code] {
				bad("rule %q references unknown symptom %q", name, code)
			}
			if seen[code] {
				bad("rule %q has duplicate condition on %q", name, code)
			}
			seen[code] = true
		}
	}

	for _, a := range f.Advice {
		if strings.TrimSpace(a.DiagnosisCode) == "" || strings.TrimSpace(a.RiskLevel) == "" || strings.TrimSpace(a.Title) == "" {
			bad("advice %q needs diagnosis_code, risk_level and title", a.Title)
		}
		switch a.Severity {
		case kb.SeverityInfo, kb.SeverityWarning, kb.SeverityAlert:
		default:
			bad("advice %q has unknown severity %q", a.Title, a.Severity)
		}
	}
	return errors.Join(errs...)
}

// Snapshot validates the file and builds an engine snapshot with synthetic
// ids: symptoms, rules and advice are numbered from 1 in file order.
func (f *File) Snapshot() (*engine.Snapshot, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ids := make(map[string]uint, len(f.Symptoms))
	syms := make([]kb.Symptom, 0, len(f.Symptoms))
	for i, s := range f.Symptoms {
		m := s.Model()
		m.ID = uint(i + 1)
		ids[m.Code] = m.ID
		syms = append(syms, m)
	}
	rules := make([]kb.Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		m := r.Model(ids)
		m.ID = uint(i + 1)
		rules = append(rules, m)
	}
	advices := make([]kb.Advice, 0, len(f.Advice))
	for i, a := range f.Advice {
		m := a.Model()
		m.ID = uint(i + 1)
		advices = append(advices, m)
	}
	return engine.FromKB(rules, syms, advices)
}

func (s Symptom) Model() kb.Symptom {
	return kb.Symptom{
		Code:          strings.TrimSpace(s.Code),
		QuestionText:  strings.TrimSpace(s.Question),
		Category:      strings.TrimSpace(s.Category),
		PriorityOrder: s.PriorityOrder,
		IsActive:      active(s.Active),
		InfoYes:       strings.TrimSpace(s.InfoYes),
		InfoNo:        strings.TrimSpace(s.InfoNo),
	}
}

// Model converts the rule, resolving symptom codes through ids.
func (r Rule) Model(ids map[string]uint) kb.Rule {
	out := kb.Rule{
		Name:            strings.TrimSpace(r.Name),
		DiagnosisCode:   strings.TrimSpace(r.DiagnosisCode),
		RiskLevel:       strings.TrimSpace(r.RiskLevel),
		Priority:        r.Priority,
		IsActive:        active(r.Active),
		ExplanationText: strings.TrimSpace(r.Explanation),
	}
	for _, c := range r.Conditions {
		out.Conditions = append(out.Conditions, kb.RuleCondition{
			SymptomID:       ids[strings.TrimSpace(c.Symptom)],
			ExpectedValue:   c.Expected,
			ExplanationText: strings.TrimSpace(c.Explanation),
		})
	}
	return out
}

func (a Advice) Model() kb.Advice {
	return kb.Advice{
		DiagnosisCode: strings.TrimSpace(a.DiagnosisCode),
		RiskLevel:     strings.TrimSpace(a.RiskLevel),
		Title:         strings.TrimSpace(a.Title),
		Content:       strings.TrimSpace(a.Content),
		Severity:      a.Severity,
		IsActive:      active(a.Active),
	}
}
