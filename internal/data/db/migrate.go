package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/diagnosis-backend/internal/domain/assessment"
	"github.com/yungbote/diagnosis-backend/internal/domain/kb"
)

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		// Knowledge base
		&kb.Symptom{},
		&kb.Rule{},
		&kb.RuleCondition{},
		&kb.Advice{},

		// Assessments
		&assessment.Assessment{},
		&assessment.Answer{},
		&assessment.Result{},
		&assessment.AuditLog{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
