package kb

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type AdviceRepo interface {
	List(dbc dbctx.Context) ([]*types.Advice, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Advice, error)
	FindActive(dbc dbctx.Context, diagnosisCode, riskLevel string) ([]*types.Advice, error)
	// Upsert matches on (diagnosis_code, risk_level, title).
	Upsert(dbc dbctx.Context, a *types.Advice) error
}

type adviceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdviceRepo(db *gorm.DB, baseLog *logger.Logger) AdviceRepo {
	return &adviceRepo{
		db:  db,
		log: baseLog.With("repo", "AdviceRepo"),
	}
}

func (r *adviceRepo) List(dbc dbctx.Context) ([]*types.Advice, error) {
	var out []*types.Advice
	if err := dbc.DB(r.db).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *adviceRepo) GetByID(dbc dbctx.Context, id uint) (*types.Advice, error) {
	if id == 0 {
		return nil, nil
	}
	var row types.Advice
	if err := dbc.DB(r.db).
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

func (r *adviceRepo) FindActive(dbc dbctx.Context, diagnosisCode, riskLevel string) ([]*types.Advice, error) {
	var out []*types.Advice
	if err := dbc.DB(r.db).
		Where("diagnosis_code = ? AND risk_level = ? AND is_active = ?", diagnosisCode, riskLevel, true).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *adviceRepo) Upsert(dbc dbctx.Context, a *types.Advice) error {
	if a == nil {
		return nil
	}
	db := dbc.DB(r.db)
	var existing types.Advice
	if err := db.
		Where("diagnosis_code = ? AND risk_level = ? AND title = ?",
			strings.TrimSpace(a.DiagnosisCode), strings.TrimSpace(a.RiskLevel), strings.TrimSpace(a.Title)).
		Limit(1).
		Find(&existing).Error; err != nil {
		return err
	}
	now := time.Now().UTC()
	a.UpdatedAt = now
	if existing.ID == 0 {
		a.ID = 0
		a.CreatedAt = now
		return db.Create(a).Error
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	return db.Model(&types.Advice{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"content":    a.Content,
			"severity":   a.Severity,
			"is_active":  a.IsActive,
			"updated_at": now,
		}).Error
}
