package assessment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Assessment is one questionnaire session. It moves IN_PROGRESS -> COMPLETED
// exactly once; the transition is a compare-and-set on Status.
type Assessment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;column:owner_id;index:idx_assessment_owner_status" json:"owner_id"`
	Status      string     `gorm:"not null;column:status;index:idx_assessment_owner_status" json:"status"`
	StartedAt   time.Time  `gorm:"not null;column:started_at" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessment" }

func (a *Assessment) Completed() bool {
	return a != nil && a.Status == StatusCompleted
}

// Answer is a recorded fact. A symptom is answered at most once per assessment.
type Answer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;not null;column:assessment_id;uniqueIndex:uq_assessment_symptom" json:"assessment_id"`
	SymptomID    uint      `gorm:"not null;column:symptom_id;uniqueIndex:uq_assessment_symptom" json:"symptom_id"`
	Value        bool      `gorm:"not null;column:answer_bool" json:"answer"`
	AnsweredAt   time.Time `gorm:"not null;column:answered_at" json:"answered_at"`
}

func (Answer) TableName() string { return "assessment_answer" }

// Result is written once per assessment and never updated.
type Result struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex;column:assessment_id" json:"assessment_id"`
	DiagnosisCode string         `gorm:"not null;column:diagnosis_code" json:"diagnosis_code"`
	RiskLevel     string         `gorm:"not null;column:risk_level" json:"risk_level"`
	Explanation   datatypes.JSON `gorm:"column:explanation" json:"explanation"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

func (Result) TableName() string { return "assessment_result" }
