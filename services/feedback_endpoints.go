package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type FeedbackEndpoints struct {
	feedbackService *FeedbackService
}

func NewFeedbackEndpoints(feedbackService *FeedbackService) *FeedbackEndpoints {
	return &FeedbackEndpoints{
		feedbackService: feedbackService,
	}
}

func (e *FeedbackEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/feedback", func(r chi.Router) {
		r.Post("/{interviewID}/generate", e.GenerateHandler)
		r.Get("/{interviewID}", e.GetHandler)
	})
}

// GenerateHandler runs the scoring pipeline for a completed interview.
// Safe to call repeatedly; the stored report is returned after the
// first run.
func (e *FeedbackEndpoints) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interviewID := chi.URLParam(r, "interviewID")
	feedback, err := e.feedbackService.GenerateFeedback(r.Context(), interviewID, user.ID)
	if err != nil {
		slog.Error("Feedback generation failed", "error", err, "interview_id", interviewID)
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feedback)
}

func (e *FeedbackEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	feedback, err := e.feedbackService.GetFeedback(r.Context(), chi.URLParam(r, "interviewID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feedback)
}
