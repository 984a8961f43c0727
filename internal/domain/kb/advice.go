package kb

import "time"

const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityAlert   = "ALERT"
)

// Advice is the recommendation attached to a (diagnosis code, risk level) conclusion.
type Advice struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	DiagnosisCode string `gorm:"not null;column:diagnosis_code;index:idx_advice_code_risk" json:"diagnosis_code"`
	RiskLevel     string `gorm:"not null;column:risk_level;index:idx_advice_code_risk" json:"risk_level"`
	Title         string `gorm:"not null;column:title" json:"title"`
	Content       string `gorm:"not null;column:content;type:text" json:"content"`
	Severity      string `gorm:"not null;column:severity" json:"severity"`
	IsActive      bool   `gorm:"not null;column:is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Advice) TableName() string { return "advice" }
