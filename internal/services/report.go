package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

type KeySymptoms struct {
	Yes []string `json:"yes"`
	No  []string `json:"no"`
}

type RiskAssessment struct {
	DiagnosisCode string `json:"diagnosis_code"`
	RiskLevel     string `json:"risk_level"`
}

type ReportAdvice struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Severity string `json:"severity"`
}

// Report is the human readable summary of an assessment.
type Report struct {
	AssessmentID   uuid.UUID       `json:"assessment_id"`
	Status         string          `json:"status"`
	KeySymptoms    KeySymptoms     `json:"key_symptoms"`
	RiskAssessment *RiskAssessment `json:"risk_assessment"`
	Reasoning      []string        `json:"reasoning"`
	Advice         *ReportAdvice   `json:"advice"`
	Fallback       bool            `json:"fallback"`
	// NextQuestion is only set while the assessment is in progress.
	NextQuestion *engine.Symptom `json:"next_question,omitempty"`
}

func (s *diagnosisService) Report(ctx context.Context, assessmentID uuid.UUID) (*Report, error) {
	const op = "DiagnosisService.Report"
	asmt, err := s.loadOwned(ctx, op, assessmentID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}

	answers, err := s.repos.Answer.ListByAssessment(dbc, asmt.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	ids := make([]uint, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.SymptomID)
	}
	symptoms, err := s.repos.Symptom.GetByIDs(dbc, ids)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	labels := make(map[uint]string, len(symptoms))
	for _, sym := range symptoms {
		labels[sym.ID] = sym.QuestionText
	}

	out := &Report{
		AssessmentID: asmt.ID,
		Status:       asmt.Status,
		KeySymptoms:  KeySymptoms{Yes: []string{}, No: []string{}},
		Reasoning:    []string{},
	}
	for _, a := range answers {
		label, ok := labels[a.SymptomID]
		if !ok || label == "" {
			label = fmt.Sprintf("symptom#%d", a.SymptomID)
		}
		if a.Value {
			out.KeySymptoms.Yes = append(out.KeySymptoms.Yes, label)
		} else {
			out.KeySymptoms.No = append(out.KeySymptoms.No, label)
		}
	}

	res, err := s.repos.Result.GetByAssessmentID(dbc, asmt.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if res == nil {
		if !asmt.Completed() {
			next, err := s.PeekNextQuestion(ctx, asmt.ID)
			if err != nil {
				return nil, err
			}
			out.NextQuestion = next
		}
		return out, nil
	}

	out.RiskAssessment = &RiskAssessment{DiagnosisCode: res.DiagnosisCode, RiskLevel: res.RiskLevel}
	exp, err := engine.ParseExplanation(res.Explanation)
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeInvariantViolation, op, "stored explanation is unreadable", err)
	}
	out.Fallback = exp.Fallback()
	if err := s.fillReasoning(dbc, out, res, exp); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if exp.AdviceID != nil {
		adv, err := s.repos.Advice.GetByID(dbc, *exp.AdviceID)
		if err != nil {
			return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
		if adv != nil {
			out.Advice = &ReportAdvice{Title: adv.Title, Content: adv.Content, Severity: adv.Severity}
		}
	}
	return out, nil
}

func (s *diagnosisService) fillReasoning(dbc dbctx.Context, out *Report, res *assessment.Result, exp engine.Explanation) error {
	if exp.Fallback() {
		out.Reasoning = append(out.Reasoning, fmt.Sprintf(
			"No rule matched the answers; defaulted to %s with %s risk.", res.DiagnosisCode, res.RiskLevel))
		return nil
	}
	rule, err := s.repos.Rule.GetByID(dbc, *exp.FiredRuleID)
	if err != nil {
		return err
	}
	if rule == nil {
		name := ""
		if exp.FiredRuleName != nil {
			name = *exp.FiredRuleName
		}
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("Rule fired: %s", name))
		return nil
	}
	if rule.ExplanationText != "" {
		out.Reasoning = append(out.Reasoning, rule.ExplanationText)
	}
	for _, c := range rule.Conditions {
		if c.ExplanationText != "" {
			out.Reasoning = append(out.Reasoning, c.ExplanationText)
		}
	}
	if len(out.Reasoning) == 0 {
		out.Reasoning = append(out.Reasoning, fmt.Sprintf("Rule fired: %s (priority %d)", rule.Name, rule.Priority))
	}
	return nil
}
