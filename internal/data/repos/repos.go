package repos

import (
	"github.com/yungbote/diagnosis-backend/internal/data/repos/assessment"
	"github.com/yungbote/diagnosis-backend/internal/data/repos/kb"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type SymptomRepo = kb.SymptomRepo
type RuleRepo = kb.RuleRepo
type AdviceRepo = kb.AdviceRepo

type AssessmentRepo = assessment.AssessmentRepo
type AnswerRepo = assessment.AnswerRepo
type ResultRepo = assessment.ResultRepo
type AuditLogRepo = assessment.AuditLogRepo

// Set bundles every table repo.
type Set struct {
	Symptom SymptomRepo
	Rule    RuleRepo
	Advice  AdviceRepo

	Assessment AssessmentRepo
	Answer     AnswerRepo
	Result     ResultRepo
	AuditLog   AuditLogRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Symptom: kb.NewSymptomRepo(db, log),
		Rule:    kb.NewRuleRepo(db, log),
		Advice:  kb.NewAdviceRepo(db, log),

		Assessment: assessment.NewAssessmentRepo(db, log),
		Answer:     assessment.NewAnswerRepo(db, log),
		Result:     assessment.NewResultRepo(db, log),
		AuditLog:   assessment.NewAuditLogRepo(db, log),
	}
}
