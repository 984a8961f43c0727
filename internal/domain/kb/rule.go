package kb

import "time"

// Rule concludes DiagnosisCode/RiskLevel once every condition holds.
type Rule struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"not null;uniqueIndex;column:name" json:"name"`
	DiagnosisCode string `gorm:"not null;column:diagnosis_code;index:idx_rule_code_risk" json:"diagnosis_code"`
	RiskLevel     string `gorm:"not null;column:risk_level;index:idx_rule_code_risk" json:"risk_level"`

	// Priority decides which matched rule fires; higher wins.
	Priority int  `gorm:"not null;column:priority;index" json:"priority"`
	IsActive bool `gorm:"not null;column:is_active;index" json:"is_active"`

	ExplanationText string `gorm:"column:explanation_text;type:text" json:"explanation_text,omitempty"`

	Conditions []RuleCondition `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"conditions,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Rule) TableName() string { return "rule" }

// RuleCondition requires SymptomID to be answered ExpectedValue.
type RuleCondition struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	RuleID          uint   `gorm:"not null;column:rule_id;uniqueIndex:uq_rule_symptom" json:"rule_id"`
	SymptomID       uint   `gorm:"not null;column:symptom_id;uniqueIndex:uq_rule_symptom;index" json:"symptom_id"`
	ExpectedValue   bool   `gorm:"not null;column:expected_value" json:"expected_value"`
	ExplanationText string `gorm:"column:explanation_text;type:text" json:"explanation_text,omitempty"`
}

func (RuleCondition) TableName() string { return "rule_condition" }
