package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/domain/kb"
)

// DemoKB holds the ids of the seeded diabetes screening knowledge base.
type DemoKB struct {
	Symptoms     map[string]uint
	HighRule     uint
	ModerateRule uint
	HighAdvice   uint
	ModAdvice    uint
}

// SeedDemoKB inserts six symptoms, a HIGH rule (polyuria, polydipsia,
// weight_loss at priority 10) and a MODERATE rule (polyuria, polydipsia at
// priority 5) with one advice each.
func SeedDemoKB(tb testing.TB, ctx context.Context, tx *gorm.DB) DemoKB {
	tb.Helper()
	now := time.Now().UTC()
	out := DemoKB{Symptoms: map[string]uint{}}

	codes := []string{"polyuria", "polydipsia", "weight_loss", "fatigue", "blurred_vision", "slow_healing"}
	for i, code := range codes {
		s := &kb.Symptom{
			Code:          code,
			QuestionText:  "Do you have " + code + "?",
			PriorityOrder: i + 1,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(s).Error; err != nil {
			tb.Fatalf("seed symptom %s: %v", code, err)
		}
		out.Symptoms[code] = s.ID
	}

	out.HighRule = SeedRule(tb, ctx, tx, "High Risk Diabetes Pattern", "HIGH", 10,
		out.Symptoms["polyuria"], out.Symptoms["polydipsia"], out.Symptoms["weight_loss"]).ID
	out.ModerateRule = SeedRule(tb, ctx, tx, "Moderate Risk Pattern", "MODERATE", 5,
		out.Symptoms["polyuria"], out.Symptoms["polydipsia"]).ID

	out.HighAdvice = SeedAdvice(tb, ctx, tx, "HIGH", "Urgent check-up recommended", kb.SeverityAlert).ID
	out.ModAdvice = SeedAdvice(tb, ctx, tx, "MODERATE", "Screening and lifestyle advice", kb.SeverityInfo).ID
	return out
}

// SeedRule inserts an active DIABETES_RISK rule whose conditions all expect "yes".
func SeedRule(tb testing.TB, ctx context.Context, tx *gorm.DB, name, risk string, priority int, symptomIDs ...uint) *kb.Rule {
	tb.Helper()
	now := time.Now().UTC()
	r := &kb.Rule{
		Name:          name,
		DiagnosisCode: "DIABETES_RISK",
		RiskLevel:     risk,
		Priority:      priority,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, id := range symptomIDs {
		r.Conditions = append(r.Conditions, kb.RuleCondition{SymptomID: id, ExpectedValue: true})
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed rule %s: %v", name, err)
	}
	return r
}

func SeedAdvice(tb testing.TB, ctx context.Context, tx *gorm.DB, risk, title, severity string) *kb.Advice {
	tb.Helper()
	now := time.Now().UTC()
	a := &kb.Advice{
		DiagnosisCode: "DIABETES_RISK",
		RiskLevel:     risk,
		Title:         title,
		Content:       title + ".",
		Severity:      severity,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed advice %s: %v", title, err)
	}
	return a
}

func SeedAssessment(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) *assessment.Assessment {
	tb.Helper()
	now := time.Now().UTC()
	a := &assessment.Assessment{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Status:    assessment.StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assessment: %v", err)
	}
	return a
}
