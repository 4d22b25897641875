package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anvekars/mockmate/backend/models"
)

// feedbackRepo is the slice of the repository the feedback pipeline
// needs. Satisfied by *repository.GORMRepository.
type feedbackRepo interface {
	GetInterviewByID(ctx context.Context, interviewID, userID string) (*models.Interview, error)
	GetFeedbackByInterviewID(ctx context.Context, interviewID string) (*models.Feedback, error)
	GetLatestMetric(ctx context.Context, interviewID string) (*models.InterviewMetric, error)
	CreateFeedback(ctx context.Context, feedback *models.Feedback) error
}

// FeedbackService orchestrates the full feedback pipeline:
// calculate scores, categorize metrics, generate the narrative,
// persist the report.
type FeedbackService struct {
	repo        feedbackRepo
	calculator  *FeedbackCalculator
	categorizer *FeedbackCategorizer
	generator   *FeedbackGenerator
}

func NewFeedbackService(repo feedbackRepo, generator *FeedbackGenerator) *FeedbackService {
	return &FeedbackService{
		repo:        repo,
		calculator:  NewFeedbackCalculator(),
		categorizer: NewFeedbackCategorizer(),
		generator:   generator,
	}
}

// GenerateFeedback runs the pipeline for a completed interview.
// Idempotent: a second call returns the already-stored report. Only
// completed interviews can be scored; a narrative provider failure
// degrades to the template fallback instead of failing the request.
func (s *FeedbackService) GenerateFeedback(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	interview, err := s.repo.GetInterviewByID(ctx, interviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("interview %s: %w", interviewID, ErrNotFound)
	}
	if interview.Status != models.StatusCompleted {
		return nil, fmt.Errorf("interview status is %s: %w", interview.Status, ErrInvalidState)
	}

	existing, err := s.repo.GetFeedbackByInterviewID(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing feedback: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	metric, err := s.repo.GetLatestMetric(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}

	scores := s.calculator.CalculateAllScores(interview, metric)
	categorized := s.categorizer.Categorize(scores, scores.Breakdown)

	jobRole := interview.JobRole
	if jobRole == "" {
		jobRole = "Software Engineer"
	}

	narrative, err := s.generator.Generate(ctx, jobRole, scores, categorized, interview.QuestionsAsked, interview.ResponsesGiven)
	if err != nil {
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			return nil, fmt.Errorf("failed to generate narrative: %w", err)
		}
		slog.Warn("Narrative generation failed, using template fallback", "error", err, "interview_id", interviewID)
		narrative = DefaultNarrative(scores.OverallScore)
	}

	feedback := &models.Feedback{
		InterviewID:            interviewID,
		ContentScore:           scores.ContentScore,
		CommunicationScore:     scores.CommunicationScore,
		ConfidenceScore:        scores.ConfidenceScore,
		OverallScore:           scores.OverallScore,
		Strengths:              categorized.Strengths,
		Weaknesses:             categorized.Weaknesses,
		WhatWentRight:          categorized.WhatWentRight,
		WhatWentWrong:          categorized.WhatWentWrong,
		DetailedFeedback:       narrative.DetailedFeedback,
		ImprovementSuggestions: narrative.ImprovementSuggestions,
	}

	if err := s.repo.CreateFeedback(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	slog.Info("Feedback pipeline completed", "interview_id", interviewID, "overall_score", scores.OverallScore)
	return feedback, nil
}

// GetFeedback returns the stored report for an interview.
func (s *FeedbackService) GetFeedback(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	interview, err := s.repo.GetInterviewByID(ctx, interviewID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interview: %w", err)
	}
	if interview == nil {
		return nil, fmt.Errorf("interview %s: %w", interviewID, ErrNotFound)
	}

	feedback, err := s.repo.GetFeedbackByInterviewID(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	if feedback == nil {
		return nil, fmt.Errorf("feedback not available, complete the interview first: %w", ErrNotFound)
	}
	return feedback, nil
}
