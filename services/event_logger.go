package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anvekars/mockmate/backend/models"
	"github.com/anvekars/mockmate/backend/repository"
)

// Event types recorded on the interview timeline.
const (
	EventFillerWord     = "filler_word"
	EventLongPause      = "long_pause"
	EventLowEyeContact  = "low_eye_contact"
	EventFidgeting      = "fidgeting"
	EventQuestionAsked  = "question_asked"
	EventAnswerComplete = "answer_complete"
	EventTimeWarning    = "time_warning"
	EventSessionEnded   = "session_ended"
)

// groupTimeWindow is the sliding window for timeline grouping: an
// event joins the current group when it lands within this many seconds
// of the group's last member.
const groupTimeWindow = 5.0

// EventLogger appends timestamped events to an interview's timeline
// and serves the grouped view. Timestamps are session-relative seconds.
type EventLogger struct {
	repo *repository.GORMRepository
}

func NewEventLogger(repo *repository.GORMRepository) *EventLogger {
	return &EventLogger{repo: repo}
}

// LogEvent appends a single event. The data payload is stored as JSON.
func (l *EventLogger) LogEvent(ctx context.Context, interviewID string, timestamp float64, eventType string, data map[string]any, severity string) error {
	if severity == "" {
		severity = models.SeverityInfo
	}
	event := &models.InterviewEvent{
		InterviewID:      interviewID,
		TimestampSeconds: timestamp,
		EventType:        eventType,
		Severity:         severity,
	}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		event.EventData = string(encoded)
	}
	return l.repo.CreateEvent(ctx, event)
}

// LogBatch appends multiple events in one transaction.
func (l *EventLogger) LogBatch(ctx context.Context, interviewID string, events []models.InterviewEvent) error {
	for i := range events {
		events[i].InterviewID = interviewID
		if events[i].Severity == "" {
			events[i].Severity = models.SeverityInfo
		}
	}
	if err := l.repo.CreateEventsBatch(ctx, events); err != nil {
		return err
	}
	slog.Info("Timeline events logged", "interview_id", interviewID, "count", len(events))
	return nil
}

// GetTimeline returns all events for an interview ordered by timestamp.
func (l *EventLogger) GetTimeline(ctx context.Context, interviewID string) ([]models.InterviewEvent, error) {
	return l.repo.GetTimeline(ctx, interviewID)
}

// GroupNearbyEvents clusters a timestamp-ordered event list. The
// window slides: each event is compared against the last member of the
// current group, not the group's first, so a long burst of closely
// spaced events stays in one group.
func GroupNearbyEvents(events []models.InterviewEvent, timeWindow float64) [][]models.InterviewEvent {
	if len(events) == 0 {
		return nil
	}

	var grouped [][]models.InterviewEvent
	current := []models.InterviewEvent{events[0]}

	for _, event := range events[1:] {
		diff := event.TimestampSeconds - current[len(current)-1].TimestampSeconds
		if diff <= timeWindow {
			current = append(current, event)
		} else {
			grouped = append(grouped, current)
			current = []models.InterviewEvent{event}
		}
	}
	return append(grouped, current)
}
