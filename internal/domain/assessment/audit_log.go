package assessment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionStartAssessment    = "START_ASSESSMENT"
	ActionAnswerQuestion     = "ANSWER_QUESTION"
	ActionCompleteAssessment = "COMPLETE_ASSESSMENT"
)

type AuditLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorUserID uuid.UUID      `gorm:"type:uuid;column:actor_user_id;index" json:"actor_user_id"`
	Action      string         `gorm:"not null;column:action;index" json:"action"`
	Entity      string         `gorm:"not null;column:entity" json:"entity"`
	EntityID    string         `gorm:"column:entity_id;index" json:"entity_id"`
	Meta        datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }
