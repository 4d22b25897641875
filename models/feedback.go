package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Observation is one categorized strength or weakness finding.
type Observation struct {
	Metric  string `json:"metric"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ObservationList is a JSON-encoded list of observations stored in a
// single column.
type ObservationList []Observation

func (l ObservationList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *ObservationList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for ObservationList: %T", value)
	}
}

// Feedback stores the scored, categorized, narrated report for exactly
// one completed interview. Immutable once created; derived only via the
// scoring pipeline.
type Feedback struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID string `gorm:"type:uuid;not null;uniqueIndex" json:"interview_id"`

	// Scores (0-100)
	ContentScore       float64 `gorm:"type:decimal(5,2)" json:"content_score"`
	CommunicationScore float64 `gorm:"type:decimal(5,2)" json:"communication_score"`
	ConfidenceScore    float64 `gorm:"type:decimal(5,2)" json:"confidence_score"`
	OverallScore       float64 `gorm:"type:decimal(5,2)" json:"overall_score"`

	// Categorized results
	Strengths              StringList      `gorm:"type:text" json:"strengths"`
	Weaknesses             StringList      `gorm:"type:text" json:"weaknesses"`
	WhatWentRight          ObservationList `gorm:"type:text" json:"what_went_right"`
	WhatWentWrong          ObservationList `gorm:"type:text" json:"what_went_wrong"`
	DetailedFeedback       string          `gorm:"type:text" json:"detailed_feedback"`
	ImprovementSuggestions StringList      `gorm:"type:text" json:"improvement_suggestions"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview Interview `gorm:"foreignKey:InterviewID" json:"-"`
}
