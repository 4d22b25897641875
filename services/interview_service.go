package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anvekars/mockmate/backend/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// interviewRepo is the slice of the repository the lifecycle service
// needs. Satisfied by *repository.GORMRepository.
type interviewRepo interface {
	GetResume(ctx context.Context, resumeID, userID string) (*models.Resume, error)
	CreateInterview(ctx context.Context, interview *models.Interview) error
	GetInterviewBySessionID(ctx context.Context, sessionID, userID string) (*models.Interview, error)
	SaveInterview(ctx context.Context, interview *models.Interview) error
	CountInterviewsToday(ctx context.Context, userID string) (int64, error)
	DeleteInterview(ctx context.Context, interviewID string) error
	GetUserInterviews(ctx context.Context, userID string) ([]models.Interview, error)
}

// InterviewService manages the session lifecycle:
// create, start, track, end, save.
type InterviewService struct {
	repo       interviewRepo
	redis      *redis.Client
	dailyLimit int
}

func NewInterviewService(repo interviewRepo, redisClient *redis.Client, dailyLimit int) *InterviewService {
	return &InterviewService{
		repo:       repo,
		redis:      redisClient,
		dailyLimit: dailyLimit,
	}
}

// CreateSession creates a new pending interview after checking the
// daily rate limit. The job role is pulled from the resume when one is
// attached.
func (s *InterviewService) CreateSession(ctx context.Context, user *models.User, resumeID, interviewType string) (*models.Interview, error) {
	if err := s.checkRateLimit(ctx, user.ID); err != nil {
		return nil, err
	}

	var jobRole string
	var resumeIDPtr *string
	if resumeID != "" {
		resume, err := s.repo.GetResume(ctx, resumeID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load resume: %w", err)
		}
		if resume == nil {
			return nil, fmt.Errorf("resume %s: %w", resumeID, ErrNotFound)
		}
		jobRole = resume.JobRole
		resumeIDPtr = &resumeID
	}

	if interviewType == "" {
		interviewType = "job_role"
	}

	interview := &models.Interview{
		UserID:        user.ID,
		ResumeID:      resumeIDPtr,
		SessionID:     uuid.New().String(),
		Status:        models.StatusPending,
		JobRole:       jobRole,
		InterviewType: interviewType,
	}

	if err := s.repo.CreateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to create interview: %w", err)
	}

	s.incrementDailyCount(ctx, user.ID)
	return interview, nil
}

// StartSession moves a pending interview to in_progress and stamps the
// start time.
func (s *InterviewService) StartSession(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if interview.Status != models.StatusPending {
		return nil, fmt.Errorf("interview is already %s: %w", interview.Status, ErrInvalidState)
	}

	now := time.Now()
	interview.Status = models.StatusInProgress
	interview.StartedAt = &now

	if err := s.repo.SaveInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to start interview: %w", err)
	}
	slog.Info("Interview started", "session_id", sessionID, "user_id", userID)
	return interview, nil
}

// EndSession completes an interview and persists the conversation
// record. Idempotent: ending a completed interview returns it as-is,
// and a session cancelled while its loop was running stays cancelled.
func (s *InterviewService) EndSession(ctx context.Context, sessionID, userID string, questionsAsked []string, responsesGiven []models.Response, videoBlobURL string) (*models.Interview, error) {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if interview.Status == models.StatusCompleted || interview.Status == models.StatusCancelled {
		return interview, nil
	}

	now := time.Now()
	if interview.StartedAt != nil {
		interview.DurationSeconds = int(now.Sub(*interview.StartedAt).Seconds())
	}

	interview.Status = models.StatusCompleted
	interview.CompletedAt = &now
	interview.QuestionsAsked = questionsAsked
	interview.ResponsesGiven = responsesGiven
	if videoBlobURL != "" {
		interview.VideoBlobURL = videoBlobURL
	}

	if err := s.repo.SaveInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to end interview: %w", err)
	}
	slog.Info("Interview completed", "session_id", sessionID, "duration_seconds", interview.DurationSeconds, "responses", len(responsesGiven))
	return interview, nil
}

// CancelSession cancels a pending or in-progress interview. Cancelled
// sessions do not count against the daily limit.
func (s *InterviewService) CancelSession(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if interview.IsTerminal() {
		return nil, fmt.Errorf("interview is already %s: %w", interview.Status, ErrInvalidState)
	}

	interview.Status = models.StatusCancelled
	if err := s.repo.SaveInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to cancel interview: %w", err)
	}

	s.decrementDailyCount(ctx, userID)
	slog.Info("Interview cancelled", "session_id", sessionID, "user_id", userID)
	return interview, nil
}

// MarkFailed moves an in-progress interview to failed, used when the
// session loop dies on an unrecoverable error.
func (s *InterviewService) MarkFailed(ctx context.Context, sessionID, userID string) error {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if interview.IsTerminal() {
		return nil
	}
	interview.Status = models.StatusFailed
	return s.repo.SaveInterview(ctx, interview)
}

// AttachRecording stores the uploaded recording URL on the interview.
func (s *InterviewService) AttachRecording(ctx context.Context, sessionID, userID, blobURL string) (*models.Interview, error) {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	interview.VideoBlobURL = blobURL
	if err := s.repo.SaveInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to attach recording: %w", err)
	}
	return interview, nil
}

// DeleteSession removes an interview and everything hanging off it
// (metrics, events, feedback).
func (s *InterviewService) DeleteSession(ctx context.Context, sessionID, userID string) error {
	interview, err := s.getSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInterview(ctx, interview.ID); err != nil {
		return fmt.Errorf("failed to delete interview: %w", err)
	}
	slog.Info("Interview deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// GetSession fetches an interview by session ID, verifying ownership.
func (s *InterviewService) GetSession(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	return s.getSession(ctx, sessionID, userID)
}

// GetUserInterviews lists the user's interviews, newest first.
func (s *InterviewService) GetUserInterviews(ctx context.Context, userID string) ([]models.Interview, error) {
	return s.repo.GetUserInterviews(ctx, userID)
}

func (s *InterviewService) getSession(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	interview, err := s.repo.GetInterviewBySessionID(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("interview session %s: %w", sessionID, ErrNotFound)
	}
	return interview, nil
}

// checkRateLimit enforces the daily cap. Redis holds the fast counter;
// when it is unavailable the database count is authoritative.
func (s *InterviewService) checkRateLimit(ctx context.Context, userID string) error {
	if s.dailyLimit <= 0 {
		return nil
	}

	if s.redis != nil {
		count, err := s.redis.Get(ctx, s.dailyCountKey(userID)).Int64()
		if err == nil {
			if count >= int64(s.dailyLimit) {
				return fmt.Errorf("daily limit of %d interviews reached: %w", s.dailyLimit, ErrRateLimited)
			}
			return nil
		}
		if err != redis.Nil {
			slog.Warn("Redis rate limit check failed, falling back to database", "error", err)
		} else {
			return nil
		}
	}

	count, err := s.repo.CountInterviewsToday(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= int64(s.dailyLimit) {
		return fmt.Errorf("daily limit of %d interviews reached: %w", s.dailyLimit, ErrRateLimited)
	}
	return nil
}

func (s *InterviewService) incrementDailyCount(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	key := s.dailyCountKey(userID)
	if err := s.redis.Incr(ctx, key).Err(); err != nil {
		slog.Warn("Failed to increment rate limit counter", "error", err, "user_id", userID)
		return
	}
	midnight := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	s.redis.ExpireAt(ctx, key, midnight)
}

func (s *InterviewService) decrementDailyCount(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Decr(ctx, s.dailyCountKey(userID)).Err(); err != nil {
		slog.Warn("Failed to decrement rate limit counter", "error", err, "user_id", userID)
	}
}

func (s *InterviewService) dailyCountKey(userID string) string {
	return fmt.Sprintf("interviews:daily:%s:%s", userID, time.Now().Format("2006-01-02"))
}
