package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/anvekars/mockmate/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Resume{},
		&models.Interview{},
		&models.InterviewMetric{},
		&models.InterviewEvent{},
		&models.Feedback{},
	)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Resume operations
func (r *GORMRepository) CreateResume(ctx context.Context, resume *models.Resume) error {
	if err := r.db.WithContext(ctx).Create(resume).Error; err != nil {
		slog.Error("Failed to create resume", "error", err)
		return err
	}
	slog.Info("Resume created", "resume_id", resume.ID, "user_id", resume.UserID)
	return nil
}

func (r *GORMRepository) GetResume(ctx context.Context, resumeID, userID string) (*models.Resume, error) {
	var resume models.Resume
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", resumeID, userID).First(&resume).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get resume", "error", err, "resume_id", resumeID)
		return nil, err
	}
	return &resume, nil
}

func (r *GORMRepository) GetResumes(ctx context.Context, userID string) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&resumes).Error
	if err != nil {
		slog.Error("Failed to get resumes", "error", err, "user_id", userID)
		return nil, err
	}
	return resumes, nil
}

// Interview operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "session_id", interview.SessionID, "user_id", interview.UserID)
	return nil
}

func (r *GORMRepository) GetInterviewBySessionID(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Preload("Resume").
		First(&interview).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview by session ID", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) GetInterviewByID(ctx context.Context, interviewID, userID string) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", interviewID, userID).
		Preload("Feedback").
		First(&interview).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview by ID", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return &interview, nil
}

func (r *GORMRepository) GetUserInterviews(ctx context.Context, userID string) ([]models.Interview, error) {
	var interviews []models.Interview
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&interviews).Error
	if err != nil {
		slog.Error("Failed to get user interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return interviews, nil
}

func (r *GORMRepository) SaveInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Save(interview).Error; err != nil {
		slog.Error("Failed to save interview", "error", err, "interview_id", interview.ID)
		return err
	}
	return nil
}

// CountInterviewsToday counts the user's non-cancelled interviews created
// since local midnight. Used as the rate-limit fallback when Redis is not
// configured.
func (r *GORMRepository) CountInterviewsToday(ctx context.Context, userID string) (int64, error) {
	var count int64
	midnight := time.Now().Truncate(24 * time.Hour)
	err := r.db.WithContext(ctx).Model(&models.Interview{}).
		Where("user_id = ? AND status != ? AND created_at >= ?", userID, models.StatusCancelled, midnight).
		Count(&count).Error
	if err != nil {
		slog.Error("Failed to count interviews", "error", err, "user_id", userID)
		return 0, err
	}
	return count, nil
}

// DeleteInterview removes an interview and its owned metrics, events and
// feedback in one transaction.
func (r *GORMRepository) DeleteInterview(ctx context.Context, interviewID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("interview_id = ?", interviewID).Delete(&models.InterviewMetric{}).Error; err != nil {
			return err
		}
		if err := tx.Where("interview_id = ?", interviewID).Delete(&models.InterviewEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("interview_id = ?", interviewID).Delete(&models.Feedback{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", interviewID).Delete(&models.Interview{}).Error
	})
	if err != nil {
		slog.Error("Failed to delete interview", "error", err, "interview_id", interviewID)
		return err
	}
	slog.Info("Interview deleted", "interview_id", interviewID)
	return nil
}

// Metric operations
func (r *GORMRepository) CreateMetric(ctx context.Context, metric *models.InterviewMetric) error {
	if err := r.db.WithContext(ctx).Create(metric).Error; err != nil {
		slog.Error("Failed to create interview metric", "error", err, "interview_id", metric.InterviewID)
		return err
	}
	slog.Info("Interview metric created", "metric_id", metric.ID, "interview_id", metric.InterviewID)
	return nil
}

// GetLatestMetric returns the most recent metric snapshot for an
// interview, or nil when none has been recorded.
func (r *GORMRepository) GetLatestMetric(ctx context.Context, interviewID string) (*models.InterviewMetric, error) {
	var metric models.InterviewMetric
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("recorded_at DESC").
		First(&metric).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get latest metric", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return &metric, nil
}

// Event operations
func (r *GORMRepository) CreateEvent(ctx context.Context, event *models.InterviewEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		slog.Error("Failed to create interview event", "error", err, "interview_id", event.InterviewID)
		return err
	}
	return nil
}

// CreateEventsBatch appends a batch of events atomically.
func (r *GORMRepository) CreateEventsBatch(ctx context.Context, events []models.InterviewEvent) error {
	if len(events) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&events).Error
	})
	if err != nil {
		slog.Error("Failed to create event batch", "error", err, "count", len(events))
		return err
	}
	slog.Info("Event batch created", "interview_id", events[0].InterviewID, "count", len(events))
	return nil
}

func (r *GORMRepository) GetTimeline(ctx context.Context, interviewID string) ([]models.InterviewEvent, error) {
	var events []models.InterviewEvent
	err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("timestamp_seconds ASC").
		Find(&events).Error
	if err != nil {
		slog.Error("Failed to get timeline", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return events, nil
}

// Feedback operations
func (r *GORMRepository) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	if err := r.db.WithContext(ctx).Create(feedback).Error; err != nil {
		slog.Error("Failed to create feedback", "error", err, "interview_id", feedback.InterviewID)
		return err
	}
	slog.Info("Feedback created", "feedback_id", feedback.ID, "interview_id", feedback.InterviewID, "overall_score", feedback.OverallScore)
	return nil
}

func (r *GORMRepository) GetFeedbackByInterviewID(ctx context.Context, interviewID string) (*models.Feedback, error) {
	var feedback models.Feedback
	err := r.db.WithContext(ctx).Where("interview_id = ?", interviewID).First(&feedback).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get feedback", "error", err, "interview_id", interviewID)
		return nil, err
	}
	return &feedback, nil
}
