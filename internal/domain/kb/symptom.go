package kb

import "time"

// Symptom is one yes/no question of the questionnaire.
type Symptom struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Code         string `gorm:"uniqueIndex;not null;column:code" json:"code"`
	QuestionText string `gorm:"not null;column:question_text" json:"question_text"`
	Category     string `gorm:"column:category" json:"category,omitempty"`

	// PriorityOrder breaks selector ties; lower is asked earlier.
	PriorityOrder int  `gorm:"not null;column:priority_order;index" json:"priority_order"`
	IsActive      bool `gorm:"not null;column:is_active" json:"is_active"`

	InfoYes string `gorm:"column:info_yes;type:text" json:"info_yes,omitempty"`
	InfoNo  string `gorm:"column:info_no;type:text" json:"info_no,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Symptom) TableName() string { return "symptom" }
