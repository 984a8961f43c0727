package assessment

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type ResultRepo interface {
	// Create fails on the unique assessment_id index if a result exists.
	Create(dbc dbctx.Context, res *types.Result) error
	GetByAssessmentID(dbc dbctx.Context, assessmentID uuid.UUID) (*types.Result, error)
	GetByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) (map[uuid.UUID]*types.Result, error)
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{
		db:  db,
		log: baseLog.With("repo", "ResultRepo"),
	}
}

func (r *resultRepo) Create(dbc dbctx.Context, res *types.Result) error {
	if res == nil {
		return nil
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(res).Error
}

func (r *resultRepo) GetByAssessmentID(dbc dbctx.Context, assessmentID uuid.UUID) (*types.Result, error) {
	if assessmentID == uuid.Nil {
		return nil, nil
	}
	var row types.Result
	if err := dbc.DB(r.db).
		Where("assessment_id = ?", assessmentID).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *resultRepo) GetByAssessmentIDs(dbc dbctx.Context, assessmentIDs []uuid.UUID) (map[uuid.UUID]*types.Result, error) {
	out := make(map[uuid.UUID]*types.Result, len(assessmentIDs))
	if len(assessmentIDs) == 0 {
		return out, nil
	}
	var rows []*types.Result
	if err := dbc.DB(r.db).
		Where("assessment_id IN ?", assessmentIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.AssessmentID] = row
	}
	return out, nil
}
