package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/anvekars/mockmate/backend/models"
	"github.com/go-chi/chi/v5"
)

const maxRecordingBytes = 100 * 1024 * 1024

type InterviewEndpoints struct {
	interviewService *InterviewService
	eventLogger      *EventLogger
	storageService   *StorageService
}

type CreateInterviewRequest struct {
	ResumeID      string `json:"resume_id,omitempty"`
	InterviewType string `json:"interview_type,omitempty"`
}

// TimelineGroup is one cluster of nearby events in the timeline view.
type TimelineGroup struct {
	StartSeconds float64                 `json:"start_seconds"`
	EndSeconds   float64                 `json:"end_seconds"`
	Events       []models.InterviewEvent `json:"events"`
}

func NewInterviewEndpoints(interviewService *InterviewService, eventLogger *EventLogger, storageService *StorageService) *InterviewEndpoints {
	return &InterviewEndpoints{
		interviewService: interviewService,
		eventLogger:      eventLogger,
		storageService:   storageService,
	}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.CreateHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{sessionID}", e.GetHandler)
		r.Delete("/{sessionID}", e.DeleteHandler)
		r.Post("/{sessionID}/cancel", e.CancelHandler)
		r.Get("/{sessionID}/timeline", e.TimelineHandler)
		r.Post("/{sessionID}/events", e.LogEventHandler)
		r.Post("/{sessionID}/recording", e.RecordingHandler)
	})
}

func (e *InterviewEndpoints) CreateHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	var req CreateInterviewRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	interview, err := e.interviewService.CreateSession(r.Context(), user, req.ResumeID, req.InterviewType)
	if err != nil {
		slog.Error("Failed to create interview", "error", err, "user_id", user.ID)
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(interview)
}

func (e *InterviewEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interviews, err := e.interviewService.GetUserInterviews(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to list interviews", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interviews": interviews,
		"count":      len(interviews),
	})
}

func (e *InterviewEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interview, err := e.interviewService.GetSession(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(interview)
}

func (e *InterviewEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interview, err := e.interviewService.GetSession(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	// Best effort; an orphaned recording blob should not block deletion.
	if interview.VideoBlobURL != "" {
		if name := e.storageService.BlobNameFromURL(interview.VideoBlobURL); name != "" {
			if err := e.storageService.DeleteBlob(r.Context(), name); err != nil {
				slog.Warn("Failed to delete recording blob", "error", err, "session_id", interview.SessionID)
			}
		}
	}

	if err := e.interviewService.DeleteSession(r.Context(), interview.SessionID, user.ID); err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (e *InterviewEndpoints) CancelHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interview, err := e.interviewService.CancelSession(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(interview)
}

// TimelineHandler returns the event timeline, grouped into clusters of
// nearby events for display.
func (e *InterviewEndpoints) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interview, err := e.interviewService.GetSession(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	events, err := e.eventLogger.GetTimeline(r.Context(), interview.ID)
	if err != nil {
		http.Error(w, "Failed to load timeline", http.StatusInternalServerError)
		return
	}

	groups := make([]TimelineGroup, 0)
	for _, cluster := range GroupNearbyEvents(events, groupTimeWindow) {
		groups = append(groups, TimelineGroup{
			StartSeconds: cluster[0].TimestampSeconds,
			EndSeconds:   cluster[len(cluster)-1].TimestampSeconds,
			Events:       cluster,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview_id": interview.ID,
		"total_events": len(events),
		"groups":       groups,
	})
}

type LogEventRequest struct {
	TimestampSeconds float64        `json:"timestamp_seconds"`
	EventType        string         `json:"event_type"`
	Severity         string         `json:"severity,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

// LogEventHandler appends a client-reported event to the timeline,
// for observations only the browser can make (tab switches, camera
// drops and the like).
func (e *InterviewEndpoints) LogEventHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	interview, err := e.interviewService.GetSession(r.Context(), chi.URLParam(r, "sessionID"), user.ID)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	var req LogEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventType == "" || req.TimestampSeconds < 0 {
		http.Error(w, "Invalid event", http.StatusBadRequest)
		return
	}

	if err := e.eventLogger.LogEvent(r.Context(), interview.ID, req.TimestampSeconds, req.EventType, req.Data, req.Severity); err != nil {
		http.Error(w, "Failed to log event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// RecordingHandler accepts the candidate's session recording and
// stores it in blob storage.
func (e *InterviewEndpoints) RecordingHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	if err := r.ParseMultipartForm(maxRecordingBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing recording file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxRecordingBytes))
	if err != nil {
		http.Error(w, "Failed to read recording", http.StatusBadRequest)
		return
	}

	result, err := e.storageService.UploadRecording(r.Context(), data, sessionID)
	if err != nil {
		slog.Error("Recording upload failed", "error", err, "session_id", sessionID)
		http.Error(w, "Recording upload failed", HTTPStatus(err))
		return
	}

	interview, err := e.interviewService.AttachRecording(r.Context(), sessionID, user.ID, result.BlobURL)
	if err != nil {
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interview_id": interview.ID,
		"blob_url":     result.BlobURL,
		"file_size":    result.FileSize,
	})
}
