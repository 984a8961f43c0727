package aggregates_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/diagnosis-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	"github.com/yungbote/diagnosis-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

type fixture struct {
	db    *gorm.DB
	repos repos.Set
	kb    testutil.DemoKB
	snap  *engine.Snapshot
	hooks *aggtestutil.HooksRecorder
	agg   domainagg.AssessmentAggregate
}

func newFixture(t *testing.T, runner aggregates.TxRunner) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{
		db:    db,
		repos: repos.NewSet(db, log),
		kb:    testutil.SeedDemoKB(t, ctx, db),
		hooks: &aggtestutil.HooksRecorder{},
	}
	f.reload(t)

	f.agg = aggregates.NewAssessmentAggregate(aggregates.AssessmentAggregateDeps{
		Base:        aggregates.BaseDeps{DB: db, Log: log, Hooks: f.hooks, Runner: runner},
		Assessments: f.repos.Assessment,
		Answers:     f.repos.Answer,
		Results:     f.repos.Result,
		Audit:       f.repos.AuditLog,
	})
	return f
}

// reload rebuilds the snapshot from the stored knowledge base.
func (f *fixture) reload(t *testing.T) {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	rules, err := f.repos.Rule.List(dbc, false)
	require.NoError(t, err)
	symptoms, err := f.repos.Symptom.List(dbc)
	require.NoError(t, err)
	advices, err := f.repos.Advice.List(dbc)
	require.NoError(t, err)
	f.snap, err = engine.FromKB(deref(rules), deref(symptoms), deref(advices))
	require.NoError(t, err)
}

func (f *fixture) deactivate(t *testing.T, codes ...string) {
	t.Helper()
	for _, code := range codes {
		require.NoError(t, f.db.Model(&kb.Symptom{}).Where("id = ?", f.kb.Symptoms[code]).Update("is_active", false).Error)
	}
	f.reload(t)
}

func deref[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, *v)
	}
	return out
}

func (f *fixture) answer(t *testing.T, id, owner uuid.UUID, symptom string, value bool) (domainagg.RecordAnswerResult, error) {
	t.Helper()
	return f.agg.RecordAnswer(context.Background(), domainagg.RecordAnswerInput{
		AssessmentID: id,
		OwnerID:      owner,
		SymptomID:    f.kb.Symptoms[symptom],
		Answer:       value,
		Snapshot:     f.snap,
		FallbackCode: "DIABETES_RISK",
	})
}

func TestAssessmentAggregateHighRiskFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()

	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.False(t, started.Resumed)
	require.NotNil(t, started.Next)
	require.Equal(t, f.kb.Symptoms["polyuria"], started.Next.ID)
	id := started.Assessment.ID

	resumed, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.True(t, resumed.Resumed)
	require.Equal(t, id, resumed.Assessment.ID)

	out, err := f.answer(t, id, owner, "polyuria", true)
	require.NoError(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, f.kb.Symptoms["polydipsia"], out.Next.ID)

	out, err = f.answer(t, id, owner, "polydipsia", true)
	require.NoError(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, engine.ReasonHigherPriorityPending, out.Verdict.Reason)
	require.Equal(t, f.kb.Symptoms["weight_loss"], out.Next.ID)

	out, err = f.answer(t, id, owner, "weight_loss", true)
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	require.Nil(t, out.Next)
	require.Equal(t, "HIGH", out.Result.RiskLevel)
	require.Equal(t, assessment.StatusCompleted, out.Assessment.Status)

	exp, err := engine.ParseExplanation(out.Result.Explanation)
	require.NoError(t, err)
	require.NotNil(t, exp.FiredRuleID)
	require.Equal(t, f.kb.HighRule, *exp.FiredRuleID)
	require.Len(t, exp.MatchedConditions, 3)
	require.NotNil(t, exp.AdviceID)
	require.Equal(t, f.kb.HighAdvice, *exp.AdviceID)

	stored, err := f.repos.Assessment.GetByID(dbctx.Context{Ctx: ctx}, id)
	require.NoError(t, err)
	require.Equal(t, assessment.StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	entries, err := f.repos.AuditLog.ListByEntity(dbctx.Context{Ctx: ctx}, "assessment", id.String())
	require.NoError(t, err)
	actions := map[string]int{}
	for _, e := range entries {
		actions[e.Action]++
	}
	require.Equal(t, map[string]int{
		assessment.ActionStartAssessment:    1,
		assessment.ActionAnswerQuestion:     3,
		assessment.ActionCompleteAssessment: 1,
	}, actions)

	_, err = f.answer(t, id, owner, "fatigue", true)
	require.True(t, domainagg.IsCode(err, domainagg.CodeConflict), "err=%v", err)

	// A completed session starts a new one.
	next, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.NotEqual(t, id, next.Assessment.ID)
}

func TestAssessmentAggregateRejectsBadAnswers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	id := started.Assessment.ID

	_, err = f.answer(t, id, owner, "polyuria", true)
	require.NoError(t, err)

	_, err = f.answer(t, id, owner, "polyuria", false)
	require.True(t, domainagg.IsCode(err, domainagg.CodeConflict), "duplicate: %v", err)

	_, err = f.agg.RecordAnswer(ctx, domainagg.RecordAnswerInput{AssessmentID: id, SymptomID: 999, Answer: true, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.True(t, domainagg.IsCode(err, domainagg.CodeValidation), "unknown symptom: %v", err)

	_, err = f.answer(t, id, uuid.New(), "polydipsia", true)
	require.True(t, domainagg.IsCode(err, domainagg.CodeForbidden), "other owner: %v", err)

	_, err = f.answer(t, uuid.New(), owner, "polydipsia", true)
	require.True(t, domainagg.IsCode(err, domainagg.CodeNotFound), "missing assessment: %v", err)

	facts, err := f.repos.Answer.Facts(dbctx.Context{Ctx: ctx}, id)
	require.NoError(t, err)
	require.Equal(t, engine.Facts{f.kb.Symptoms["polyuria"]: true}, facts)
	require.GreaterOrEqual(t, f.hooks.ConflictCount(), 1)
}

func TestAssessmentAggregateFallbackWhenRuledOut(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)

	out, err := f.answer(t, started.Assessment.ID, owner, "polyuria", false)
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	require.Equal(t, "DIABETES_RISK", out.Result.DiagnosisCode)
	require.Equal(t, "LOW", out.Result.RiskLevel)
	require.JSONEq(t,
		fmt.Sprintf(`{"fired_rule_id":null,"fired_rule_name":null,"matched_conditions":[],"facts":{"%d":false},"advice_id":null}`, f.kb.Symptoms["polyuria"]),
		string(out.Result.Explanation))
}

func TestAssessmentAggregateFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	asmt := testutil.SeedAssessment(t, ctx, f.db, owner)
	for _, sid := range []uint{f.kb.Symptoms["polyuria"], f.kb.Symptoms["polydipsia"], f.kb.Symptoms["weight_loss"]} {
		require.NoError(t, f.repos.Answer.Create(dbctx.Context{Ctx: ctx}, &assessment.Answer{AssessmentID: asmt.ID, SymptomID: sid, Value: sid != f.kb.Symptoms["weight_loss"], AnsweredAt: asmt.StartedAt}))
	}

	in := domainagg.FinalizeInput{AssessmentID: asmt.ID, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"}
	first, err := f.agg.TryFinalize(ctx, in)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, "MODERATE", first.Result.RiskLevel)

	second, err := f.agg.TryFinalize(ctx, in)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Result.ID, second.Result.ID)

	fb, err := f.agg.EnsureFallback(ctx, in)
	require.NoError(t, err)
	require.False(t, fb.Created)
	require.Equal(t, first.Result.ID, fb.Result.ID)
}

func TestAssessmentAggregateTryFinalizeWaits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	asmt := testutil.SeedAssessment(t, ctx, f.db, uuid.New())

	out, err := f.agg.TryFinalize(ctx, domainagg.FinalizeInput{AssessmentID: asmt.ID, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, engine.ReasonNoMatch, out.Verdict.Reason)

	fb, err := f.agg.EnsureFallback(ctx, domainagg.FinalizeInput{AssessmentID: asmt.ID, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.True(t, fb.Created)
	require.Equal(t, "LOW", fb.Result.RiskLevel)

	again, err := f.agg.EnsureFallback(ctx, domainagg.FinalizeInput{AssessmentID: asmt.ID, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, fb.Result.ID, again.Result.ID)
}

func TestAssessmentAggregateRollsBackOnFailure(t *testing.T) {
	injected := errors.New("connection reset")
	runner := &aggtestutil.FaultyTxRunner{}
	f := newFixture(t, runner)
	runner.Inner = aggregates.NewGormTxRunner(f.db)
	ctx := context.Background()
	owner := uuid.New()

	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)

	runner.FailAfterBody = injected
	_, err = f.answer(t, started.Assessment.ID, owner, "polyuria", false)
	require.Error(t, err)
	require.ErrorIs(t, err, injected)
	require.Equal(t, 1, runner.Rollbacks)

	dbc := dbctx.Context{Ctx: ctx}
	facts, err := f.repos.Answer.Facts(dbc, started.Assessment.ID)
	require.NoError(t, err)
	require.Empty(t, facts)
	res, err := f.repos.Result.GetByAssessmentID(dbc, started.Assessment.ID)
	require.NoError(t, err)
	require.Nil(t, res)
	stored, err := f.repos.Assessment.GetByID(dbc, started.Assessment.ID)
	require.NoError(t, err)
	require.Equal(t, assessment.StatusInProgress, stored.Status)
}

func TestAssessmentAggregateRejectsInactiveSymptom(t *testing.T) {
	f := newFixture(t, nil)
	f.deactivate(t, "weight_loss")
	ctx := context.Background()
	owner := uuid.New()

	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.Equal(t, f.kb.Symptoms["polyuria"], started.Next.ID)
	id := started.Assessment.ID

	_, err = f.answer(t, id, owner, "weight_loss", true)
	require.True(t, domainagg.IsCode(err, domainagg.CodeValidation), "inactive symptom: %v", err)

	dbc := dbctx.Context{Ctx: ctx}
	facts, err := f.repos.Answer.Facts(dbc, id)
	require.NoError(t, err)
	require.Empty(t, facts)
	entries, err := f.repos.AuditLog.ListByEntity(dbc, "assessment", id.String())
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, assessment.ActionAnswerQuestion, e.Action)
	}
}

func TestAssessmentAggregateAcceptsForcedInactiveQuestion(t *testing.T) {
	f := newFixture(t, nil)
	// Both top-scoring symptoms are inactive, so the selector has to ask one.
	f.deactivate(t, "polyuria", "polydipsia")
	ctx := context.Background()
	owner := uuid.New()

	started, err := f.agg.Start(ctx, domainagg.StartAssessmentInput{OwnerID: owner, Snapshot: f.snap, FallbackCode: "DIABETES_RISK"})
	require.NoError(t, err)
	require.NotNil(t, started.Next)
	require.Equal(t, f.kb.Symptoms["polyuria"], started.Next.ID)
	id := started.Assessment.ID

	// polydipsia is inactive and not the forced question yet.
	_, err = f.answer(t, id, owner, "polydipsia", true)
	require.True(t, domainagg.IsCode(err, domainagg.CodeValidation), "not forced: %v", err)

	out, err := f.answer(t, id, owner, "polyuria", true)
	require.NoError(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, f.kb.Symptoms["polydipsia"], out.Next.ID)

	out, err = f.answer(t, id, owner, "polydipsia", true)
	require.NoError(t, err)
	require.Nil(t, out.Result)
	require.Equal(t, engine.ReasonHigherPriorityPending, out.Verdict.Reason)
	require.Equal(t, f.kb.Symptoms["weight_loss"], out.Next.ID)

	facts, err := f.repos.Answer.Facts(dbctx.Context{Ctx: ctx}, id)
	require.NoError(t, err)
	require.Equal(t, engine.Facts{f.kb.Symptoms["polyuria"]: true, f.kb.Symptoms["polydipsia"]: true}, facts)
}
