package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/diagnosis-backend/internal/data/repos/testutil"
	types "github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

func TestAssessmentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAssessmentRepo(db, testutil.Logger(t))

	owner := uuid.New()
	base := time.Now().UTC()
	older := &types.Assessment{OwnerID: owner, Status: types.StatusCompleted, StartedAt: base.Add(-time.Hour), UpdatedAt: base}
	newer := &types.Assessment{OwnerID: owner, Status: types.StatusInProgress, StartedAt: base, UpdatedAt: base}
	for _, a := range []*types.Assessment{older, newer} {
		if err := repo.Create(dbc, a); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.LockByID(dbc, newer.ID)
	if err != nil {
		t.Fatalf("LockByID: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Fatalf("LockByID: unexpected %+v", got)
	}

	inProgress, err := repo.LatestInProgress(dbc, owner)
	if err != nil {
		t.Fatalf("LatestInProgress: %v", err)
	}
	if inProgress == nil || inProgress.ID != newer.ID {
		t.Fatalf("LatestInProgress: unexpected %+v", inProgress)
	}

	none, err := repo.LatestInProgress(dbc, uuid.New())
	if err != nil {
		t.Fatalf("LatestInProgress (other owner): %v", err)
	}
	if none != nil {
		t.Fatalf("LatestInProgress (other owner): expected nil")
	}

	list, err := repo.ListByOwner(dbc, owner, 50)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("ListByOwner: expected newest first, got %+v", list)
	}
}

func TestAnswerRepoRejectsDuplicateSymptom(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewAnswerRepo(db, testutil.Logger(t))
	a := testutil.SeedAssessment(t, ctx, tx, uuid.New())

	now := time.Now().UTC()
	if err := repo.Create(dbc, &types.Answer{AssessmentID: a.ID, SymptomID: 1, Value: true, AnsweredAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(dbc, &types.Answer{AssessmentID: a.ID, SymptomID: 2, Value: false, AnsweredAt: now}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	facts, err := repo.Facts(dbc, a.ID)
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts) != 2 || !facts[1] || facts[2] {
		t.Fatalf("Facts: unexpected %v", facts)
	}

	// A failed statement aborts a Postgres transaction; use a savepoint.
	sp := tx.SavePoint("dup")
	if sp.Error != nil {
		t.Fatalf("SavePoint: %v", sp.Error)
	}
	if err := repo.Create(dbc, &types.Answer{AssessmentID: a.ID, SymptomID: 1, Value: false, AnsweredAt: now}); err == nil {
		t.Fatalf("Create (duplicate): expected unique violation")
	}
	tx.RollbackTo("dup")
}

func TestResultAndAuditRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	results := NewResultRepo(db, testutil.Logger(t))
	audit := NewAuditLogRepo(db, testutil.Logger(t))
	a := testutil.SeedAssessment(t, ctx, tx, uuid.New())

	res := &types.Result{AssessmentID: a.ID, DiagnosisCode: "DIABETES_RISK", RiskLevel: "LOW", Explanation: []byte(`{"facts":{}}`), CreatedAt: time.Now().UTC()}
	if err := results.Create(dbc, res); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := results.GetByAssessmentID(dbc, a.ID)
	if err != nil {
		t.Fatalf("GetByAssessmentID: %v", err)
	}
	if got == nil || got.ID != res.ID {
		t.Fatalf("GetByAssessmentID: unexpected %+v", got)
	}
	byID, err := results.GetByAssessmentIDs(dbc, []uuid.UUID{a.ID, uuid.New()})
	if err != nil {
		t.Fatalf("GetByAssessmentIDs: %v", err)
	}
	if len(byID) != 1 || byID[a.ID] == nil {
		t.Fatalf("GetByAssessmentIDs: unexpected %+v", byID)
	}

	if err := audit.Record(dbc, a.OwnerID, types.ActionCompleteAssessment, "assessment", a.ID.String(), map[string]any{"risk_level": "LOW"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := audit.ListByEntity(dbc, "assessment", a.ID.String())
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != types.ActionCompleteAssessment {
		t.Fatalf("ListByEntity: unexpected %+v", entries)
	}
}
