package assessment

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type AssessmentRepo interface {
	Create(dbc dbctx.Context, a *types.Assessment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	// LockByID reads the row under a row lock where the dialect supports it.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	LatestInProgress(dbc dbctx.Context, ownerID uuid.UUID) (*types.Assessment, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Assessment, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{
		db:  db,
		log: baseLog.With("repo", "AssessmentRepo"),
	}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, a *types.Assessment) error {
	if a == nil {
		return nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(a).Error
}

func (r *assessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	return r.getByID(dbc.DB(r.db), id)
}

func (r *assessmentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	return r.getByID(dbctx.ForUpdate(dbc.DB(r.db)), id)
}

func (r *assessmentRepo) getByID(db *gorm.DB, id uuid.UUID) (*types.Assessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Assessment
	if err := db.
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *assessmentRepo) LatestInProgress(dbc dbctx.Context, ownerID uuid.UUID) (*types.Assessment, error) {
	if ownerID == uuid.Nil {
		return nil, nil
	}
	var row types.Assessment
	if err := dbc.DB(r.db).
		Where("owner_id = ? AND status = ?", ownerID, types.StatusInProgress).
		Order("started_at DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *assessmentRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Assessment, error) {
	var out []*types.Assessment
	if ownerID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := dbc.DB(r.db).
		Where("owner_id = ?", ownerID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
