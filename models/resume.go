package models

import (
	"time"

	"gorm.io/gorm"
)

// Resume stores an uploaded resume blob reference plus the parsed
// role/skills profile used to personalize interview questions.
type Resume struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Filename        string     `gorm:"size:255;not null" json:"filename"`
	BlobURL         string     `gorm:"size:500;not null" json:"blob_url"`
	FileSize        int        `gorm:"not null" json:"file_size"`
	ExtractedText   string     `gorm:"type:text" json:"-"`
	JobRole         string     `gorm:"size:255" json:"job_role,omitempty"`
	ExperienceYears int        `json:"experience_years,omitempty"`
	Skills          StringList `gorm:"type:text" json:"skills,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User       User        `gorm:"foreignKey:UserID" json:"-"`
	Interviews []Interview `gorm:"foreignKey:ResumeID" json:"interviews,omitempty"`
}
