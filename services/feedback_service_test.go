package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anvekars/mockmate/backend/models"
)

type fakeFeedbackRepo struct {
	interviews map[string]*models.Interview
	feedback   map[string]*models.Feedback
	metric     *models.InterviewMetric
	creates    int
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{
		interviews: make(map[string]*models.Interview),
		feedback:   make(map[string]*models.Feedback),
	}
}

func (r *fakeFeedbackRepo) GetInterviewByID(ctx context.Context, interviewID, userID string) (*models.Interview, error) {
	iv, ok := r.interviews[interviewID]
	if !ok || iv.UserID != userID {
		return nil, nil
	}
	return iv, nil
}

func (r *fakeFeedbackRepo) GetFeedbackByInterviewID(ctx context.Context, interviewID string) (*models.Feedback, error) {
	return r.feedback[interviewID], nil
}

func (r *fakeFeedbackRepo) GetLatestMetric(ctx context.Context, interviewID string) (*models.InterviewMetric, error) {
	return r.metric, nil
}

func (r *fakeFeedbackRepo) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	r.creates++
	r.feedback[feedback.InterviewID] = feedback
	return nil
}

func completedInterview(id, userID string) *models.Interview {
	return &models.Interview{
		ID:     id,
		UserID: userID,
		Status: models.StatusCompleted,
		QuestionsAsked: models.StringList{
			"Tell me about yourself.",
		},
		ResponsesGiven: models.ResponseList{
			{QuestionIndex: 0, Response: "I build data pipelines and like fixing slow queries.", WordCount: 9},
		},
	}
}

func TestGenerateFeedbackFallsBackToTemplate(t *testing.T) {
	repo := newFakeFeedbackRepo()
	repo.interviews["iv-1"] = completedInterview("iv-1", "user-1")

	// No API key: the narrative provider fails upstream and the
	// pipeline must still produce a stored report.
	svc := NewFeedbackService(repo, NewFeedbackGenerator("", "gemini-2.0-flash"))

	fb, err := svc.GenerateFeedback(context.Background(), "iv-1", "user-1")
	if err != nil {
		t.Fatalf("GenerateFeedback failed: %v", err)
	}
	if fb.DetailedFeedback == "" {
		t.Error("expected a template narrative, got empty detailed feedback")
	}
	if len(fb.ImprovementSuggestions) == 0 {
		t.Error("expected template improvement suggestions")
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, expected the report to be persisted once", repo.creates)
	}
}

func TestGenerateFeedbackIdempotent(t *testing.T) {
	repo := newFakeFeedbackRepo()
	repo.interviews["iv-1"] = completedInterview("iv-1", "user-1")
	svc := NewFeedbackService(repo, NewFeedbackGenerator("", "gemini-2.0-flash"))

	first, err := svc.GenerateFeedback(context.Background(), "iv-1", "user-1")
	if err != nil {
		t.Fatalf("first GenerateFeedback failed: %v", err)
	}
	second, err := svc.GenerateFeedback(context.Background(), "iv-1", "user-1")
	if err != nil {
		t.Fatalf("second GenerateFeedback failed: %v", err)
	}

	if second != first {
		t.Error("second call should return the stored report")
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, expected exactly one stored report", repo.creates)
	}
}

func TestGenerateFeedbackRejectsNonCompleted(t *testing.T) {
	statuses := []string{models.StatusPending, models.StatusInProgress, models.StatusCancelled, models.StatusFailed}

	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			repo := newFakeFeedbackRepo()
			iv := completedInterview("iv-1", "user-1")
			iv.Status = status
			repo.interviews["iv-1"] = iv
			svc := NewFeedbackService(repo, NewFeedbackGenerator("", "gemini-2.0-flash"))

			if _, err := svc.GenerateFeedback(context.Background(), "iv-1", "user-1"); !errors.Is(err, ErrInvalidState) {
				t.Errorf("err = %v, expected ErrInvalidState", err)
			}
		})
	}
}

func TestGetFeedbackBeforeScoring(t *testing.T) {
	repo := newFakeFeedbackRepo()
	repo.interviews["iv-1"] = completedInterview("iv-1", "user-1")
	svc := NewFeedbackService(repo, NewFeedbackGenerator("", "gemini-2.0-flash"))

	_, err := svc.GetFeedback(context.Background(), "iv-1", "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, expected ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "complete the interview first") {
		t.Errorf("err = %q, expected it to tell the candidate to complete the interview first", err)
	}
}
