package models

import (
	"time"

	"gorm.io/gorm"
)

// InterviewMetric is one aggregated measurement snapshot for a session.
// Created exactly once at session end by the orchestrator; read-only
// afterward. Scoring consumes the most recent snapshot by RecordedAt.
type InterviewMetric struct {
	ID          string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID string `gorm:"type:uuid;not null;index" json:"interview_id"`

	// Speech metrics
	FillerWordsCount     int     `gorm:"default:0" json:"filler_words_count"`
	TotalWordsSpoken     int     `gorm:"default:0" json:"total_words_spoken"`
	AveragePauseDuration float64 `gorm:"default:0" json:"average_pause_duration"`
	LongestPauseDuration float64 `gorm:"default:0" json:"longest_pause_duration"`
	SpeechRateWPM        float64 `gorm:"default:0" json:"speech_rate_wpm"`

	// Video metrics (client-side telemetry)
	EyeContactPercentage float64 `gorm:"default:0" json:"eye_contact_percentage"`
	FidgetingCount       int     `gorm:"default:0" json:"fidgeting_count"`
	PostureScore         float64 `gorm:"default:0" json:"posture_score"`

	// Audio analysis
	VoiceConfidenceScore float64 `gorm:"default:0" json:"voice_confidence_score"`
	VoiceStability       float64 `gorm:"default:0" json:"voice_stability"`

	RecordedAt time.Time      `gorm:"not null" json:"recorded_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview Interview `gorm:"foreignKey:InterviewID" json:"-"`
}
