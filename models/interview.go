package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Interview lifecycle states. Transitions are monotonic except that a
// pending or in-progress session may be cancelled.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// StringList is a JSON-encoded list of strings stored in a single column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value interface{}) error {
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
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Response is one candidate answer, tagged with the question it answers.
type Response struct {
	QuestionIndex int    `json:"question_index"`
	Response      string `json:"response"`
	Timestamp     string `json:"timestamp"`
	WordCount     int    `json:"word_count,omitempty"`
	FillerCount   int    `json:"filler_count,omitempty"`
}

// ResponseList is a JSON-encoded list of responses stored in a single column.
type ResponseList []Response

func (l ResponseList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *ResponseList) Scan(value interface{}) error {
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
		return fmt.Errorf("unsupported type for ResponseList: %T", value)
	}
}

// Interview represents one mock interview attempt from creation to
// completion or cancellation.
type Interview struct {
	ID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID   string  `gorm:"type:uuid;not null;index" json:"user_id"`
	ResumeID *string `gorm:"type:uuid;index" json:"resume_id,omitempty"`

	// SessionID is the opaque external-facing token used by clients.
	SessionID     string `gorm:"size:255;uniqueIndex;not null" json:"session_id"`
	Status        string `gorm:"not null;default:'pending';check:status IN ('pending', 'in_progress', 'completed', 'cancelled', 'failed')" json:"status"`
	JobRole       string `gorm:"size:255" json:"job_role,omitempty"`
	InterviewType string `gorm:"size:100;default:'job_role'" json:"interview_type"`

	// Timing
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`

	// Conversation data
	QuestionsAsked StringList   `gorm:"type:text" json:"questions_asked"`
	ResponsesGiven ResponseList `gorm:"type:text" json:"responses_given"`

	// Recording
	VideoBlobURL     string `gorm:"size:500" json:"video_blob_url,omitempty"`
	TotalEventsCount int    `gorm:"default:0" json:"total_events_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User     User             `gorm:"foreignKey:UserID" json:"-"`
	Resume   *Resume          `gorm:"foreignKey:ResumeID" json:"resume,omitempty"`
	Metrics  []InterviewMetric `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"metrics,omitempty"`
	Events   []InterviewEvent  `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
	Feedback *Feedback         `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"feedback,omitempty"`
}

// IsTerminal reports whether the session can no longer change state.
func (i *Interview) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusCancelled || i.Status == StatusFailed
}
