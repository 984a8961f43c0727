package kb

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	types "github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type RuleRepo interface {
	List(dbc dbctx.Context, activeOnly bool) ([]*types.Rule, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Rule, error)
	GetByName(dbc dbctx.Context, name string) (*types.Rule, error)
	// Upsert matches on name and replaces the rule's conditions.
	Upsert(dbc dbctx.Context, rule *types.Rule) error
}

type ruleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleRepo(db *gorm.DB, baseLog *logger.Logger) RuleRepo {
	return &ruleRepo{
		db:  db,
		log: baseLog.With("repo", "RuleRepo"),
	}
}

func preloadConditions(db *gorm.DB) *gorm.DB {
	return db.Order("rule_condition.symptom_id ASC")
}

func (r *ruleRepo) List(dbc dbctx.Context, activeOnly bool) ([]*types.Rule, error) {
	q := dbc.DB(r.db).Preload("Conditions", preloadConditions)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []*types.Rule
	if err := q.Order("priority DESC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ruleRepo) GetByID(dbc dbctx.Context, id uint) (*types.Rule, error) {
	if id == 0 {
		return nil, nil
	}
	var row types.Rule
	if err := dbc.DB(r.db).
		Preload("Conditions", preloadConditions).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *ruleRepo) GetByName(dbc dbctx.Context, name string) (*types.Rule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var row types.Rule
	if err := dbc.DB(r.db).
		Preload("Conditions", preloadConditions).
		Where("name = ?", name).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *ruleRepo) Upsert(dbc dbctx.Context, rule *types.Rule) error {
	const op = "RuleRepo.Upsert"
	if rule == nil {
		return nil
	}
	if len(rule.Conditions) == 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("rule %q has no conditions", rule.Name), nil)
	}
	seen := make(map[uint]bool, len(rule.Conditions))
	for _, c := range rule.Conditions {
		if seen[c.SymptomID] {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("rule %q repeats symptom %d", rule.Name, c.SymptomID), nil)
		}
		seen[c.SymptomID] = true
	}

	existing, err := r.GetByName(dbc, rule.Name)
	if err != nil {
		return err
	}
	db := dbc.DB(r.db)
	now := time.Now().UTC()
	conds := rule.Conditions
	rule.UpdatedAt = now

	if existing == nil {
		rule.ID = 0
		rule.CreatedAt = now
		rule.Conditions = nil
		if err := db.Create(rule).Error; err != nil {
			return err
		}
	} else {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
		if err := db.Model(&types.Rule{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"diagnosis_code":   rule.DiagnosisCode,
				"risk_level":       rule.RiskLevel,
				"priority":         rule.Priority,
				"is_active":        rule.IsActive,
				"explanation_text": rule.ExplanationText,
				"updated_at":       now,
			}).Error; err != nil {
			return err
		}
		if err := db.Where("rule_id = ?", existing.ID).Delete(&types.RuleCondition{}).Error; err != nil {
			return err
		}
	}

	for i := range conds {
		conds[i].ID = 0
		conds[i].RuleID = rule.ID
	}
	if err := db.Create(&conds).Error; err != nil {
		return err
	}
	rule.Conditions = conds
	return nil
}
