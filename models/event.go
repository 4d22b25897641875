package models

import (
	"time"

	"gorm.io/gorm"
)

// Event severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// InterviewEvent is one timestamped, typed observation during a session
// (e.g. a filler word or a low-engagement window). Events are append-only,
// ordered by session-relative timestamp, and removed only when the owning
// interview is deleted.
type InterviewEvent struct {
	ID               string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID      string  `gorm:"type:uuid;not null;index" json:"interview_id"`
	TimestampSeconds float64 `gorm:"not null" json:"timestamp_seconds"` // seconds from session start
	EventType        string  `gorm:"size:50;not null" json:"event_type"`
	EventData        string  `gorm:"type:text" json:"event_data,omitempty"` // JSON payload
	Severity         string  `gorm:"size:20;default:'info';check:severity IN ('info', 'warning', 'critical')" json:"severity"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview Interview `gorm:"foreignKey:InterviewID" json:"-"`
}
