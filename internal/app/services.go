package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/data/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/data/repos"
	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/observability"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"github.com/yungbote/diagnosis-backend/internal/services"
)

type Services struct {
	Auth          services.AuthService
	KnowledgeBase services.KnowledgeBaseService
	KBImport      services.KnowledgeBaseImportService
	Diagnosis     services.DiagnosisService

	Assessment domainagg.AssessmentAggregate
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	authService := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL)

	kbService := services.NewKnowledgeBaseService(
		db,
		log,
		reposet.Symptom,
		reposet.Rule,
		reposet.Advice,
		metrics,
		cfg.KBSnapshotTTL,
	)
	importService := services.NewKnowledgeBaseImportService(
		db,
		log,
		reposet.Symptom,
		reposet.Rule,
		reposet.Advice,
		kbService,
	)

	assessmentAgg := aggregates.NewAssessmentAggregate(aggregates.AssessmentAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Assessments: reposet.Assessment,
		Answers:     reposet.Answer,
		Results:     reposet.Result,
		Audit:       reposet.AuditLog,
	})

	diagnosisService := services.NewDiagnosisService(
		db,
		log,
		assessmentAgg,
		kbService,
		reposet,
		clients.Locker,
		metrics,
		cfg.FallbackDiagnosisCode,
	)

	return Services{
		Auth:          authService,
		KnowledgeBase: kbService,
		KBImport:      importService,
		Diagnosis:     diagnosisService,
		Assessment:    assessmentAgg,
	}
}
