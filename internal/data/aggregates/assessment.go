package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

const assessmentTable = "assessment"

type AssessmentAggregateDeps struct {
	Base BaseDeps

	Assessments repos.AssessmentRepo
	Answers     repos.AnswerRepo
	Results     repos.ResultRepo
	Audit       repos.AuditLogRepo
}

type assessmentAggregate struct {
	deps AssessmentAggregateDeps
}

func NewAssessmentAggregate(deps AssessmentAggregateDeps) domainagg.AssessmentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &assessmentAggregate{deps: deps}
}

func (a *assessmentAggregate) Contract() domainagg.Contract {
	return domainagg.AssessmentAggregateContract
}

func (a *assessmentAggregate) checkDeps(op string) error {
	if a.deps.Assessments == nil || a.deps.Answers == nil || a.deps.Results == nil || a.deps.Audit == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "assessment aggregate repos not configured", nil)
	}
	return nil
}

func (a *assessmentAggregate) eventTime(at time.Time) time.Time {
	if at.IsZero() {
		return a.deps.Base.Now()
	}
	return at.UTC()
}

func (a *assessmentAggregate) Start(ctx context.Context, in domainagg.StartAssessmentInput) (domainagg.StartAssessmentResult, error) {
	const op = "Diagnosis.Assessment.Start"
	var out domainagg.StartAssessmentResult
	if in.OwnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing owner_id", nil)
	}
	if in.Snapshot == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "missing knowledge base snapshot", nil)
	}
	if err := a.checkDeps(op); err != nil {
		return out, err
	}
	at := a.eventTime(in.EventAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.StartAssessmentResult{}
		asmt, err := a.deps.Assessments.LatestInProgress(dbc, in.OwnerID)
		if err != nil {
			return err
		}
		if asmt != nil {
			out.Resumed = true
		} else {
			asmt = &assessment.Assessment{
				ID:        uuid.New(),
				OwnerID:   in.OwnerID,
				Status:    assessment.StatusInProgress,
				StartedAt: at,
				UpdatedAt: at,
			}
			if err := a.deps.Assessments.Create(dbc, asmt); err != nil {
				return err
			}
			if err := a.deps.Audit.Record(dbc, in.OwnerID, assessment.ActionStartAssessment, assessmentTable, asmt.ID.String(), nil); err != nil {
				return err
			}
		}
		out.Assessment = asmt

		facts, err := a.deps.Answers.Facts(dbc, asmt.ID)
		if err != nil {
			return err
		}
		adv, err := a.advance(dbc, asmt, facts, in.Snapshot, in.FallbackCode, at)
		if err != nil {
			return err
		}
		out.Next = adv.next
		out.Result = adv.result
		return nil
	})
	return out, err
}

func (a *assessmentAggregate) RecordAnswer(ctx context.Context, in domainagg.RecordAnswerInput) (domainagg.RecordAnswerResult, error) {
	const op = "Diagnosis.Assessment.RecordAnswer"
	var out domainagg.RecordAnswerResult
	if in.AssessmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}
	if in.SymptomID == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing symptom_id", nil)
	}
	if in.Snapshot == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "missing knowledge base snapshot", nil)
	}
	if err := a.checkDeps(op); err != nil {
		return out, err
	}
	at := a.eventTime(in.EventAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.RecordAnswerResult{}
		asmt, err := a.lockOwned(dbc, op, in.AssessmentID, in.OwnerID)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(asmt.Status, assessment.StatusInProgress); err != nil {
			return ConflictError("assessment already completed")
		}

		facts, err := a.deps.Answers.Facts(dbc, asmt.ID)
		if err != nil {
			return err
		}
		if facts.Has(in.SymptomID) {
			return ConflictError(fmt.Sprintf("symptom %d already answered", in.SymptomID))
		}
		sym, ok := in.Snapshot.Symptom(in.SymptomID)
		if !ok {
			return ValidationError(fmt.Sprintf("unknown symptom %d", in.SymptomID))
		}
		if !sym.Active {
			// An inactive symptom is only accepted when it is the forced next question.
			q, ok := engine.NextQuestion(in.Snapshot, facts)
			if !ok || q.ID != sym.ID {
				return ValidationError(fmt.Sprintf("symptom %d is not active", in.SymptomID))
			}
		}

		ans := &assessment.Answer{
			ID:           uuid.New(),
			AssessmentID: asmt.ID,
			SymptomID:    in.SymptomID,
			Value:        in.Answer,
			AnsweredAt:   at,
		}
		if err := a.deps.Answers.Create(dbc, ans); err != nil {
			return err
		}
		if err := a.deps.Audit.Record(dbc, asmt.OwnerID, assessment.ActionAnswerQuestion, assessmentTable, asmt.ID.String(), map[string]any{
			"symptom_id": in.SymptomID,
			"answer":     in.Answer,
		}); err != nil {
			return err
		}
		facts[in.SymptomID] = in.Answer

		adv, err := a.advance(dbc, asmt, facts, in.Snapshot, in.FallbackCode, at)
		if err != nil {
			return err
		}
		out.Assessment = asmt
		out.Answer = ans
		out.Verdict = adv.verdict
		out.Next = adv.next
		out.Result = adv.result
		return nil
	})
	return out, err
}

func (a *assessmentAggregate) TryFinalize(ctx context.Context, in domainagg.FinalizeInput) (domainagg.FinalizeResult, error) {
	const op = "Diagnosis.Assessment.TryFinalize"
	return a.finalize(ctx, op, in, func(facts engine.Facts) (engine.Conclusion, engine.Verdict, bool) {
		v := engine.Decide(in.Snapshot, facts)
		c, ok := engine.Conclude(in.Snapshot, v, facts)
		return c, v, ok
	})
}

func (a *assessmentAggregate) EnsureFallback(ctx context.Context, in domainagg.FinalizeInput) (domainagg.FinalizeResult, error) {
	const op = "Diagnosis.Assessment.EnsureFallback"
	return a.finalize(ctx, op, in, func(facts engine.Facts) (engine.Conclusion, engine.Verdict, bool) {
		return engine.FallbackExplanation(in.Snapshot, in.FallbackCode, facts), engine.Verdict{Reason: engine.ReasonNoMatch}, true
	})
}

func (a *assessmentAggregate) finalize(
	ctx context.Context,
	op string,
	in domainagg.FinalizeInput,
	conclude func(facts engine.Facts) (engine.Conclusion, engine.Verdict, bool),
) (domainagg.FinalizeResult, error) {
	var out domainagg.FinalizeResult
	if in.AssessmentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}
	if in.Snapshot == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "missing knowledge base snapshot", nil)
	}
	if err := a.checkDeps(op); err != nil {
		return out, err
	}
	at := a.eventTime(in.EventAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.FinalizeResult{}
		asmt, err := a.lockOwned(dbc, op, in.AssessmentID, in.OwnerID)
		if err != nil {
			return err
		}
		existing, err := a.deps.Results.GetByAssessmentID(dbc, asmt.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out.Result = existing
			return nil
		}
		if asmt.Completed() {
			return InvariantError(fmt.Sprintf("assessment %s completed without a result", asmt.ID))
		}

		facts, err := a.deps.Answers.Facts(dbc, asmt.ID)
		if err != nil {
			return err
		}
		c, v, ok := conclude(facts)
		out.Verdict = v
		if !ok {
			return nil
		}
		res, created, err := a.commit(dbc, asmt, c, at)
		if err != nil {
			return err
		}
		out.Result = res
		out.Created = created
		return nil
	})
	return out, err
}

func (a *assessmentAggregate) lockOwned(dbc dbctx.Context, op string, id, ownerID uuid.UUID) (*assessment.Assessment, error) {
	asmt, err := a.deps.Assessments.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if asmt == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("assessment not found: %s", id), nil)
	}
	if ownerID != uuid.Nil && asmt.OwnerID != ownerID {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "assessment belongs to another user", nil)
	}
	return asmt, nil
}

type advanceOutcome struct {
	verdict engine.Verdict
	next    *engine.Symptom
	result  *assessment.Result
}

// advance runs finalization, then question selection, then fallback.
func (a *assessmentAggregate) advance(dbc dbctx.Context, asmt *assessment.Assessment, facts engine.Facts, snap *engine.Snapshot, fallbackCode string, at time.Time) (advanceOutcome, error) {
	var out advanceOutcome
	out.verdict = engine.Decide(snap, facts)
	if c, ok := engine.Conclude(snap, out.verdict, facts); ok {
		res, _, err := a.commit(dbc, asmt, c, at)
		out.result = res
		return out, err
	}
	if q, ok := engine.NextQuestion(snap, facts); ok {
		out.next = &q
		return out, nil
	}
	res, _, err := a.commit(dbc, asmt, engine.FallbackExplanation(snap, fallbackCode, facts), at)
	out.result = res
	return out, err
}

// commit persists the conclusion and completes the assessment. An existing
// result wins and is returned with created=false.
func (a *assessmentAggregate) commit(dbc dbctx.Context, asmt *assessment.Assessment, c engine.Conclusion, at time.Time) (*assessment.Result, bool, error) {
	existing, err := a.deps.Results.GetByAssessmentID(dbc, asmt.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if strings.TrimSpace(c.DiagnosisCode) == "" {
		return nil, false, InvariantError("conclusion has no diagnosis code")
	}

	ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, assessmentTable, asmt.ID, []string{assessment.StatusInProgress}, map[string]any{
		"status":       assessment.StatusCompleted,
		"completed_at": at,
		"updated_at":   at,
	})
	if err != nil {
		return nil, false, err
	}
	if err := RequireCASSuccess(ok, "assessment already completed"); err != nil {
		return nil, false, err
	}

	raw, err := c.Explanation.Marshal()
	if err != nil {
		return nil, false, err
	}
	res := &assessment.Result{
		ID:            uuid.New(),
		AssessmentID:  asmt.ID,
		DiagnosisCode: c.DiagnosisCode,
		RiskLevel:     c.RiskLevel,
		Explanation:   datatypes.JSON(raw),
		CreatedAt:     at,
	}
	if err := a.deps.Results.Create(dbc, res); err != nil {
		return nil, false, err
	}

	meta := map[string]any{
		"diagnosis_code": c.DiagnosisCode,
		"risk_level":     c.RiskLevel,
		"fallback":       c.Explanation.Fallback(),
	}
	if c.Explanation.FiredRuleID != nil {
		meta["fired_rule_id"] = *c.Explanation.FiredRuleID
	}
	if err := a.deps.Audit.Record(dbc, asmt.OwnerID, assessment.ActionCompleteAssessment, assessmentTable, asmt.ID.String(), meta); err != nil {
		return nil, false, err
	}

	asmt.Status = assessment.StatusCompleted
	completedAt := at
	asmt.CompletedAt = &completedAt
	asmt.UpdatedAt = at
	return res, true, nil
}
