package assessment

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/engine"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
)

type AnswerRepo interface {
	// Create fails on the (assessment_id, symptom_id) unique index when the
	// symptom was already answered.
	Create(dbc dbctx.Context, a *types.Answer) error
	ListByAssessment(dbc dbctx.Context, assessmentID uuid.UUID) ([]*types.Answer, error)
	Facts(dbc dbctx.Context, assessmentID uuid.UUID) (engine.Facts, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return &answerRepo{
		db:  db,
		log: baseLog.With("repo", "AnswerRepo"),
	}
}

func (r *answerRepo) Create(dbc dbctx.Context, a *types.Answer) error {
	if a == nil {
		return nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(a).Error
}

func (r *answerRepo) ListByAssessment(dbc dbctx.Context, assessmentID uuid.UUID) ([]*types.Answer, error) {
	var out []*types.Answer
	if assessmentID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("assessment_id = ?", assessmentID).
		Order("answered_at ASC, symptom_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerRepo) Facts(dbc dbctx.Context, assessmentID uuid.UUID) (engine.Facts, error) {
	rows, err := r.ListByAssessment(dbc, assessmentID)
	if err != nil {
		return nil, err
	}
	facts := make(engine.Facts, len(rows))
	for _, a := range rows {
		facts[a.SymptomID] = a.Value
	}
	return facts, nil
}
