package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/ctxutil"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/lock"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

const DefaultFallbackDiagnosisCode = "DIABETES_RISK"

// Advance is the outcome of one answer: either the next question or the
// committed result.
type Advance struct {
	Assessment *assessment.Assessment
	Answer     *assessment.Answer
	Verdict    engine.Verdict
	Next       *engine.Symptom
	Result     *assessment.Result
}

type StartOutcome struct {
	Assessment *assessment.Assessment
	Resumed    bool
	Next       *engine.Symptom
	Result     *assessment.Result
	// Report is set when the assessment completed during Start.
	Report *Report
}

type HistoryItem struct {
	AssessmentID  uuid.UUID  `json:"assessment_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DiagnosisCode *string    `json:"diagnosis_code"`
	RiskLevel     *string    `json:"risk_level"`
}

// DiagnosisService drives questionnaire sessions for the caller identified
// by the request context.
type DiagnosisService interface {
	Start(ctx context.Context) (*StartOutcome, error)
	RecordAnswerAndAdvance(ctx context.Context, assessmentID uuid.UUID, symptomID uint, answer bool) (*Advance, error)
	PeekNextQuestion(ctx context.Context, assessmentID uuid.UUID) (*engine.Symptom, error)
	GetResult(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error)
	TryFinalize(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error)
	EnsureFallback(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error)
	Report(ctx context.Context, assessmentID uuid.UUID) (*Report, error)
	History(ctx context.Context, limit int) ([]HistoryItem, error)
}

type diagnosisService struct {
	db           *gorm.DB
	log          *logger.Logger
	agg          domainagg.AssessmentAggregate
	kb           KnowledgeBaseService
	repos        repos.Set
	locker       lock.Locker
	metrics      *observability.Metrics
	fallbackCode string
}

func NewDiagnosisService(
	db *gorm.DB,
	baseLog *logger.Logger,
	agg domainagg.AssessmentAggregate,
	kb KnowledgeBaseService,
	repoSet repos.Set,
	locker lock.Locker,
	metrics *observability.Metrics,
	fallbackCode string,
) DiagnosisService {
	if locker == nil {
		locker = lock.NewLocal(0)
	}
	fallbackCode = strings.TrimSpace(fallbackCode)
	if fallbackCode == "" {
		fallbackCode = DefaultFallbackDiagnosisCode
	}
	return &diagnosisService{
		db:           db,
		log:          baseLog.With("service", "DiagnosisService"),
		agg:          agg,
		kb:           kb,
		repos:        repoSet,
		locker:       locker,
		metrics:      metrics,
		fallbackCode: fallbackCode,
	}
}

func (s *diagnosisService) Start(ctx context.Context) (out *StartOutcome, err error) {
	const op = "DiagnosisService.Start"
	ownerID := ctxutil.UserID(ctx)
	if ownerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	snap, err := s.kb.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	// Serializes concurrent starts of one owner so only one assessment is created.
	unlock, err := s.acquire(ctx, op, "diagnosis:owner:"+ownerID.String())
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	res, err := s.agg.Start(ctx, domainagg.StartAssessmentInput{
		OwnerID:      ownerID,
		Snapshot:     snap,
		FallbackCode: s.fallbackCode,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("assessment.id", res.Assessment.ID.String()), attribute.Bool("assessment.resumed", res.Resumed))
	s.metrics.IncAssessmentStarted(res.Resumed)

	out = &StartOutcome{
		Assessment: res.Assessment,
		Resumed:    res.Resumed,
		Next:       res.Next,
		Result:     res.Result,
	}
	if res.Result != nil {
		s.observeResult(ctx, res.Result)
		out.Report, err = s.Report(ctx, res.Assessment.ID)
		if err != nil {
			return nil, err
		}
	}
	s.log.Info("assessment started",
		"assessment_id", res.Assessment.ID,
		"owner_id", ownerID,
		"resumed", res.Resumed,
		"completed", res.Result != nil,
	)
	return out, nil
}

func (s *diagnosisService) RecordAnswerAndAdvance(ctx context.Context, assessmentID uuid.UUID, symptomID uint, answer bool) (out *Advance, err error) {
	const op = "DiagnosisService.RecordAnswerAndAdvance"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.String("assessment.id", assessmentID.String()),
		attribute.Int64("symptom.id", int64(symptomID)),
	)
	defer func() { endSpan(span, err) }()

	snap, err := s.kb.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, op, lock.SessionKey(assessmentID.String()))
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	res, err := s.agg.RecordAnswer(ctx, domainagg.RecordAnswerInput{
		AssessmentID: assessmentID,
		OwnerID:      ctxutil.UserID(ctx),
		SymptomID:    symptomID,
		Answer:       answer,
		Snapshot:     snap,
		FallbackCode: s.fallbackCode,
	})
	if err != nil {
		s.log.Debug("answer rejected", "assessment_id", assessmentID, "symptom_id", symptomID, "error", err)
		return nil, err
	}
	s.metrics.IncAnswerRecorded()
	s.metrics.IncFinalizeDecision(string(res.Verdict.Reason))
	if res.Verdict.Blocking != nil {
		s.log.Debug("finalization deferred",
			"assessment_id", assessmentID,
			"reason", res.Verdict.Reason,
			"candidate_rule_id", ruleID(res.Verdict.Candidate),
			"blocking_rule_id", res.Verdict.Blocking.ID,
		)
	}
	if res.Result != nil {
		s.observeResult(ctx, res.Result)
		span.SetAttributes(attribute.String("result.diagnosis_code", res.Result.DiagnosisCode), attribute.String("result.risk_level", res.Result.RiskLevel))
	}
	return &Advance{
		Assessment: res.Assessment,
		Answer:     res.Answer,
		Verdict:    res.Verdict,
		Next:       res.Next,
		Result:     res.Result,
	}, nil
}

func (s *diagnosisService) PeekNextQuestion(ctx context.Context, assessmentID uuid.UUID) (*engine.Symptom, error) {
	const op = "DiagnosisService.PeekNextQuestion"
	asmt, err := s.loadOwned(ctx, op, assessmentID)
	if err != nil {
		return nil, err
	}
	if asmt.Completed() {
		return nil, nil
	}
	snap, err := s.kb.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	facts, err := s.repos.Answer.Facts(dbctx.Context{Ctx: ctx}, asmt.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	q, ok := engine.NextQuestion(snap, facts)
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *diagnosisService) GetResult(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error) {
	const op = "DiagnosisService.GetResult"
	asmt, err := s.loadOwned(ctx, op, assessmentID)
	if err != nil {
		return nil, err
	}
	res, err := s.repos.Result.GetByAssessmentID(dbctx.Context{Ctx: ctx}, asmt.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if res == nil && asmt.Completed() {
		return nil, domainagg.NewError(domainagg.CodeInvariantViolation, op, "completed assessment has no result", nil)
	}
	return res, nil
}

func (s *diagnosisService) TryFinalize(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error) {
	return s.finalize(ctx, "DiagnosisService.TryFinalize", assessmentID, s.agg.TryFinalize)
}

func (s *diagnosisService) EnsureFallback(ctx context.Context, assessmentID uuid.UUID) (*assessment.Result, error) {
	return s.finalize(ctx, "DiagnosisService.EnsureFallback", assessmentID, s.agg.EnsureFallback)
}

func (s *diagnosisService) finalize(
	ctx context.Context,
	op string,
	assessmentID uuid.UUID,
	fn func(context.Context, domainagg.FinalizeInput) (domainagg.FinalizeResult, error),
) (res *assessment.Result, err error) {
	ctx, span := observability.StartSpan(ctx, op, attribute.String("assessment.id", assessmentID.String()))
	defer func() { endSpan(span, err) }()

	snap, err := s.kb.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	unlock, err := s.acquire(ctx, op, lock.SessionKey(assessmentID.String()))
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	out, err := fn(ctx, domainagg.FinalizeInput{
		AssessmentID: assessmentID,
		OwnerID:      ctxutil.UserID(ctx),
		Snapshot:     snap,
		FallbackCode: s.fallbackCode,
	})
	if err != nil {
		return nil, err
	}
	if out.Created {
		s.observeResult(ctx, out.Result)
	}
	return out.Result, nil
}

func (s *diagnosisService) History(ctx context.Context, limit int) ([]HistoryItem, error) {
	const op = "DiagnosisService.History"
	ownerID := ctxutil.UserID(ctx)
	if ownerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "missing caller identity", nil)
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.repos.Assessment.ListByOwner(dbc, ownerID, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	results, err := s.repos.Result.GetByAssessmentIDs(dbc, ids)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	out := make([]HistoryItem, 0, len(rows))
	for _, r := range rows {
		item := HistoryItem{
			AssessmentID: r.ID,
			Status:       r.Status,
			StartedAt:    r.StartedAt,
			CompletedAt:  r.CompletedAt,
		}
		if res := results[r.ID]; res != nil {
			code, risk := res.DiagnosisCode, res.RiskLevel
			item.DiagnosisCode = &code
			item.RiskLevel = &risk
		}
		out = append(out, item)
	}
	return out, nil
}

// loadOwned reads the assessment without locking and enforces ownership when
// the context carries a caller.
func (s *diagnosisService) loadOwned(ctx context.Context, op string, id uuid.UUID) (*assessment.Assessment, error) {
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing assessment_id", nil)
	}
	asmt, err := s.repos.Assessment.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if asmt == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("assessment not found: %s", id), nil)
	}
	if owner := ctxutil.UserID(ctx); owner != uuid.Nil && asmt.OwnerID != owner {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "assessment belongs to another user", nil)
	}
	return asmt, nil
}

func (s *diagnosisService) acquire(ctx context.Context, op, key string) (lock.Unlock, error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, key)
	status := "acquired"
	if err != nil {
		status = "failed"
	}
	s.metrics.ObserveLockWait(s.locker.Backend(), status, time.Since(start))
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, lock.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, domainagg.NewError(domainagg.CodeRetryable, op, "session busy, retry", err)
	}
	return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
}

func (s *diagnosisService) release(unlock lock.Unlock) {
	if err := unlock(context.Background()); err != nil {
		s.log.Warn("session lock release failed", "error", err)
	}
}

func (s *diagnosisService) observeResult(ctx context.Context, res *assessment.Result) {
	if res == nil {
		return
	}
	fallback := false
	if exp, err := engine.ParseExplanation(res.Explanation); err == nil {
		fallback = exp.Fallback()
	}
	answered := 0
	if facts, err := s.repos.Answer.Facts(dbctx.Context{Ctx: ctx}, res.AssessmentID); err == nil {
		answered = len(facts)
	}
	s.metrics.ObserveResult(res.DiagnosisCode, res.RiskLevel, fallback, answered)
	s.log.Info("assessment completed",
		"assessment_id", res.AssessmentID,
		"diagnosis_code", res.DiagnosisCode,
		"risk_level", res.RiskLevel,
		"fallback", fallback,
		"answered", answered,
	)
}

func ruleID(r *engine.Rule) uint {
	if r == nil {
		return 0
	}
	return r.ID
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := domainagg.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("error.code", string(code)))
		}
	}
	span.End()
}
