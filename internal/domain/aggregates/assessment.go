package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
)

var AssessmentAggregateContract = Contract{
	Name:             "Diagnosis.AssessmentAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the record-evaluate-select unit of an assessment: answer insert, finalization, " +
		"fallback and the IN_PROGRESS -> COMPLETED transition commit in one transaction.",
}

// AssessmentAggregate owns assessment progression invariants.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeForbidden, CodeConflict, CodeRetryable, CodeInternal.
type AssessmentAggregate interface {
	Aggregate

	// Start resumes the owner's IN_PROGRESS assessment or creates one, then
	// finalizes it when no question is left.
	Start(ctx context.Context, in StartAssessmentInput) (StartAssessmentResult, error)

	// RecordAnswer stores one fact and advances the assessment: finalization,
	// then question selection, then fallback.
	RecordAnswer(ctx context.Context, in RecordAnswerInput) (RecordAnswerResult, error)

	// TryFinalize commits the firing rule if the policy allows it. An existing
	// result is returned unchanged.
	TryFinalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error)

	// EnsureFallback commits the default conclusion unless a result exists.
	EnsureFallback(ctx context.Context, in FinalizeInput) (FinalizeResult, error)
}

type StartAssessmentInput struct {
	OwnerID      uuid.UUID
	Snapshot     *engine.Snapshot
	FallbackCode string
	EventAt      time.Time
}

type StartAssessmentResult struct {
	Assessment *assessment.Assessment
	Resumed    bool
	Next       *engine.Symptom
	Result     *assessment.Result
}

type RecordAnswerInput struct {
	AssessmentID uuid.UUID
	// OwnerID is checked against the assessment owner unless uuid.Nil.
	OwnerID      uuid.UUID
	SymptomID    uint
	Answer       bool
	Snapshot     *engine.Snapshot
	FallbackCode string
	EventAt      time.Time
}

type RecordAnswerResult struct {
	Assessment *assessment.Assessment
	Answer     *assessment.Answer
	Verdict    engine.Verdict
	Next       *engine.Symptom
	Result     *assessment.Result
}

type FinalizeInput struct {
	AssessmentID uuid.UUID
	OwnerID      uuid.UUID
	Snapshot     *engine.Snapshot
	FallbackCode string
	EventAt      time.Time
}

type FinalizeResult struct {
	Result  *assessment.Result
	Verdict engine.Verdict
	// Created is false when the result already existed.
	Created bool
}
