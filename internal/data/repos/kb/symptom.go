package kb

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/kb"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type SymptomRepo interface {
	List(dbc dbctx.Context) ([]*types.Symptom, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Symptom, error)
	GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Symptom, error)
	GetByCode(dbc dbctx.Context, code string) (*types.Symptom, error)
	Upsert(dbc dbctx.Context, s *types.Symptom) error
}

type symptomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSymptomRepo(db *gorm.DB, baseLog *logger.Logger) SymptomRepo {
	return &symptomRepo{
		db:  db,
		log: baseLog.With("repo", "SymptomRepo"),
	}
}

func (r *symptomRepo) List(dbc dbctx.Context) ([]*types.Symptom, error) {
	var out []*types.Symptom
	if err := dbc.DB(r.db).
		Order("priority_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *symptomRepo) GetByID(dbc dbctx.Context, id uint) (*types.Symptom, error) {
	if id == 0 {
		return nil, nil
	}
	var row types.Symptom
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

func (r *symptomRepo) GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Symptom, error) {
	var out []*types.Symptom
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("id IN ?", ids).
		Order("priority_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *symptomRepo) GetByCode(dbc dbctx.Context, code string) (*types.Symptom, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var row types.Symptom
	if err := dbc.DB(r.db).
		Where("code = ?", code).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

// Upsert matches on code and fills s.ID.
func (r *symptomRepo) Upsert(dbc dbctx.Context, s *types.Symptom) error {
	if s == nil {
		return nil
	}
	existing, err := r.GetByCode(dbc, s.Code)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s.UpdatedAt = now
	if existing == nil {
		s.ID = 0
		s.CreatedAt = now
		return dbc.DB(r.db).Create(s).Error
	}
	s.ID = existing.ID
	s.CreatedAt = existing.CreatedAt
	return dbc.DB(r.db).
		Model(&types.Symptom{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"question_text":  s.QuestionText,
			"category":       s.Category,
			"priority_order": s.PriorityOrder,
			"is_active":      s.IsActive,
			"info_yes":       s.InfoYes,
			"info_no":        s.InfoNo,
			"updated_at":     now,
		}).Error
}
