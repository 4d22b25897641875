package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anvekars/mockmate/backend/models"
	ws "github.com/anvekars/mockmate/backend/websocket"
)

type fakeConn struct {
	inbound chan ws.ClientMessage

	mu   sync.Mutex
	sent []any
	ch   chan any
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan ws.ClientMessage, 16),
		ch:      make(chan any, 64),
	}
}

func (c *fakeConn) Inbound() <-chan ws.ClientMessage { return c.inbound }

func (c *fakeConn) SendJSON(v any) {
	c.mu.Lock()
	c.sent = append(c.sent, v)
	c.mu.Unlock()
	select {
	case c.ch <- v:
	default:
	}
}

// waitFor blocks until a sent message matches, or times out.
func (c *fakeConn) waitFor(t *testing.T, match func(any) bool, timeout time.Duration) any {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case v := <-c.ch:
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message")
			return nil
		}
	}
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.sent...)
}

type fakeSessionStore struct {
	mu           sync.Mutex
	startCalls   int
	endCalls     int
	failedCalls  int
	endQuestions []string
	endResponses []models.Response
	startErr     error
	endErr       error
	onEnd        func()
}

func (s *fakeSessionStore) StartSession(ctx context.Context, sessionID, userID string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &models.Interview{SessionID: sessionID, UserID: userID, Status: models.StatusInProgress}, nil
}

func (s *fakeSessionStore) EndSession(ctx context.Context, sessionID, userID string, questionsAsked []string, responsesGiven []models.Response, videoBlobURL string) (*models.Interview, error) {
	s.mu.Lock()
	s.endCalls++
	err := s.endErr
	if err == nil {
		s.endQuestions = questionsAsked
		s.endResponses = responsesGiven
	}
	onEnd := s.onEnd
	s.mu.Unlock()

	if onEnd != nil {
		onEnd()
	}
	if err != nil {
		return nil, err
	}
	return &models.Interview{SessionID: sessionID, Status: models.StatusCompleted, DurationSeconds: 42}, nil
}

func (s *fakeSessionStore) MarkFailed(ctx context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedCalls++
	return nil
}

type fakeMetricStore struct {
	mu      sync.Mutex
	metrics []*models.InterviewMetric
}

func (s *fakeMetricStore) CreateMetric(ctx context.Context, metric *models.InterviewMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metric)
	return nil
}

type fakeTimelineSink struct {
	mu     sync.Mutex
	events []models.InterviewEvent
}

func (s *fakeTimelineSink) LogBatch(ctx context.Context, interviewID string, events []models.InterviewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

type fakeQuestionSource struct {
	count int
}

func (s *fakeQuestionSource) GenerateQuestions(ctx context.Context, jobRole string, skills []string, experienceYears int, interviewType string, numQuestions int) []Question {
	questions := make([]Question, s.count)
	for i := range questions {
		questions[i] = Question{Question: fmt.Sprintf("Question %d?", i+1), Type: "behavioral"}
	}
	return questions
}

// fakeVoice records every speak request. With autoAck it acknowledges
// each one with a done event, like a healthy upstream; without it the
// requests are never acknowledged.
type fakeVoice struct {
	connectErr error
	autoAck    bool

	mu     sync.Mutex
	spoken []string
	events chan RealtimeEvent
}

func (v *fakeVoice) Connect(ctx context.Context) error {
	if v.connectErr != nil {
		return v.connectErr
	}
	v.events = make(chan RealtimeEvent, 16)
	return nil
}

func (v *fakeVoice) Speak(ctx context.Context, text string) error {
	v.mu.Lock()
	v.spoken = append(v.spoken, text)
	v.mu.Unlock()
	if v.autoAck {
		v.events <- RealtimeEvent{Type: RealtimeDone}
	}
	return nil
}

func (v *fakeVoice) speakCalls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

func (v *fakeVoice) Events() <-chan RealtimeEvent { return v.events }

func (v *fakeVoice) Close() error {
	if v.events != nil {
		close(v.events)
		v.events = nil
	}
	return nil
}

func testConfig() InterviewConfig {
	return InterviewConfig{
		SoftLimit:      time.Hour,
		HardLimit:      time.Hour,
		SilenceLimit:   time.Hour,
		PollInterval:   10 * time.Millisecond,
		DailyLimit:     5,
		QuestionsTotal: 2,
	}
}

func testInterview() *models.Interview {
	return &models.Interview{
		ID:        "interview-1",
		UserID:    "user-1",
		SessionID: "session-1",
		Status:    models.StatusPending,
		JobRole:   "Backend Engineer",
	}
}

func runSession(t *testing.T, cfg InterviewConfig, sessions *fakeSessionStore, metrics *fakeMetricStore, timeline *fakeTimelineSink, questions QuestionSource, newVoice func() VoiceClient, conn *fakeConn, interview *models.Interview) chan error {
	t.Helper()
	o := NewOrchestrator(cfg, sessions, metrics, timeline, questions, newVoice)
	done := make(chan error, 1)
	go func() {
		done <- o.Run(context.Background(), conn, interview)
	}()
	return done
}

func TestOrchestratorCompletedFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("full session flow waits on real settle delays")
	}

	conn := newFakeConn()
	sessions := &fakeSessionStore{}
	metrics := &fakeMetricStore{}
	timeline := &fakeTimelineSink{}
	questions := &fakeQuestionSource{count: 1}

	done := runSession(t, testConfig(), sessions, metrics, timeline, questions, nil, conn, testInterview())

	ready := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ReadyMessage)
		return ok
	}, 2*time.Second).(ws.ReadyMessage)
	if ready.TotalQuestions != 1 {
		t.Errorf("ready.TotalQuestions = %d, expected 1", ready.TotalQuestions)
	}

	// First question arrives after the intro settles.
	question := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.QuestionMessage)
		return ok
	}, 5*time.Second).(ws.QuestionMessage)
	if question.Index != 1 || question.Total != 1 {
		t.Errorf("question = %+v, expected index 1 of 1", question)
	}

	conn.inbound <- ws.ClientMessage{
		Type:       ws.TypeResponseComplete,
		Transcript: "I led the um migration to a new queueing system and reduced latency significantly",
	}

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 10*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonCompleted {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonCompleted)
	}
	if ended.TotalQuestions != 1 {
		t.Errorf("ended.TotalQuestions = %d, expected 1", ended.TotalQuestions)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after session ended")
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.endCalls != 1 {
		t.Errorf("EndSession called %d times, expected exactly once", sessions.endCalls)
	}
	if len(sessions.endQuestions) != 1 || len(sessions.endResponses) != 1 {
		t.Errorf("persisted %d questions and %d responses, expected 1 and 1",
			len(sessions.endQuestions), len(sessions.endResponses))
	}
	if sessions.endResponses[0].WordCount == 0 {
		t.Error("response word count was not recorded")
	}

	metrics.mu.Lock()
	if len(metrics.metrics) != 1 {
		t.Errorf("saved %d metric snapshots, expected 1", len(metrics.metrics))
	} else if metrics.metrics[0].FillerWordsCount != 1 {
		t.Errorf("FillerWordsCount = %d, expected 1", metrics.metrics[0].FillerWordsCount)
	}
	metrics.mu.Unlock()

	timeline.mu.Lock()
	defer timeline.mu.Unlock()
	var sawQuestion, sawAnswer, sawEnd bool
	for _, ev := range timeline.events {
		switch ev.EventType {
		case EventQuestionAsked:
			sawQuestion = true
		case EventAnswerComplete:
			sawAnswer = true
		case EventSessionEnded:
			sawEnd = true
		}
	}
	if !sawQuestion || !sawAnswer || !sawEnd {
		t.Errorf("timeline missing events: question=%v answer=%v end=%v", sawQuestion, sawAnswer, sawEnd)
	}
}

func TestOrchestratorCandidateEnded(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{}
	timeline := &fakeTimelineSink{}

	done := runSession(t, testConfig(), sessions, &fakeMetricStore{}, timeline, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ReadyMessage)
		return ok
	}, 2*time.Second)

	conn.inbound <- ws.ClientMessage{Type: ws.TypeEnd}

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonCandidateEnded {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonCandidateEnded)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorSilenceTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SilenceLimit = 50 * time.Millisecond

	conn := newFakeConn()
	sessions := &fakeSessionStore{}

	done := runSession(t, cfg, sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonSilence {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonSilence)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorHardTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.HardLimit = 50 * time.Millisecond

	conn := newFakeConn()

	done := runSession(t, cfg, &fakeSessionStore{}, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonTimeout {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonTimeout)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorDisconnect(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{}

	done := runSession(t, testConfig(), sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ReadyMessage)
		return ok
	}, 2*time.Second)

	close(conn.inbound)

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonDisconnected {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonDisconnected)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// Session still persisted even though the candidate vanished.
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.endCalls != 1 {
		t.Errorf("EndSession called %d times, expected 1", sessions.endCalls)
	}
}

func TestOrchestratorVoiceFailureFatal(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{}
	voice := &fakeVoice{connectErr: fmt.Errorf("upstream unavailable")}

	done := runSession(t, testConfig(), sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2},
		func() VoiceClient { return voice }, conn, testInterview())

	// The candidate hears about the failure before the channel ends.
	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ErrorMessage)
		return ok
	}, 2*time.Second)

	ended := conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second).(ws.EndedMessage)
	if ended.Reason != EndReasonError {
		t.Errorf("ended.Reason = %q, expected %q", ended.Reason, EndReasonError)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run returned nil, expected the connection error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// Whatever was captured is still persisted.
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.endCalls != 1 {
		t.Errorf("EndSession called %d times, expected 1", sessions.endCalls)
	}
}

func TestOrchestratorSingleOutstandingSpeak(t *testing.T) {
	if testing.Short() {
		t.Skip("full session flow waits on real settle delays")
	}

	conn := newFakeConn()
	voice := &fakeVoice{} // never acknowledges a speak request

	done := runSession(t, testConfig(), &fakeSessionStore{}, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 1},
		func() VoiceClient { return voice }, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.QuestionMessage)
		return ok
	}, 5*time.Second)

	conn.inbound <- ws.ClientMessage{
		Type:       ws.TypeResponseComplete,
		Transcript: "I designed the ingestion pipeline and owned its rollout",
	}

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 10*time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	// The intro was spoken and never acknowledged, so the question and
	// the closing remark must have stayed queued.
	if calls := voice.speakCalls(); len(calls) != 1 {
		t.Errorf("%d speak requests issued without acknowledgement, expected 1: %q", len(calls), calls)
	}
}

func TestOrchestratorQueuedSpeechDrainsInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("full session flow waits on real settle delays")
	}

	conn := newFakeConn()
	voice := &fakeVoice{autoAck: true}

	done := runSession(t, testConfig(), &fakeSessionStore{}, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 1},
		func() VoiceClient { return voice }, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.QuestionMessage)
		return ok
	}, 5*time.Second)

	conn.inbound <- ws.ClientMessage{
		Type:       ws.TypeResponseComplete,
		Transcript: "I migrated the billing system to event sourcing over two quarters",
	}

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 10*time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	calls := voice.speakCalls()
	if len(calls) != 3 {
		t.Fatalf("%d speak requests, expected intro, question and closing", len(calls))
	}
	if !strings.Contains(calls[0], "Hello") {
		t.Errorf("first utterance %q is not the intro", calls[0])
	}
	if calls[1] != "Question 1?" {
		t.Errorf("second utterance %q is not the question", calls[1])
	}
	if !strings.Contains(calls[2], "wraps up") {
		t.Errorf("third utterance %q is not the closing remark", calls[2])
	}
}

func TestOrchestratorIgnoresPrematureResponse(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{}

	done := runSession(t, testConfig(), sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ReadyMessage)
		return ok
	}, 2*time.Second)

	// No question has been asked yet; this answer references nothing.
	conn.inbound <- ws.ClientMessage{
		Type:       ws.TypeResponseComplete,
		Transcript: "premature answer",
	}
	conn.inbound <- ws.ClientMessage{Type: ws.TypeEnd}

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 5*time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if len(sessions.endResponses) != 0 {
		t.Errorf("persisted %d responses against %d questions, expected none",
			len(sessions.endResponses), len(sessions.endQuestions))
	}
}

func TestOrchestratorEndedSentBeforePersist(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{}

	var endedFirst bool
	sessions.onEnd = func() {
		for _, v := range conn.messages() {
			if _, ok := v.(ws.EndedMessage); ok {
				endedFirst = true
			}
		}
	}

	done := runSession(t, testConfig(), sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.ReadyMessage)
		return ok
	}, 2*time.Second)

	conn.inbound <- ws.ClientMessage{Type: ws.TypeEnd}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	if !endedFirst {
		t.Error("session was persisted before the terminal ended message went out")
	}
}

func TestOrchestratorStartFailure(t *testing.T) {
	conn := newFakeConn()
	sessions := &fakeSessionStore{startErr: fmt.Errorf("db down")}

	o := NewOrchestrator(testConfig(), sessions, &fakeMetricStore{}, &fakeTimelineSink{}, &fakeQuestionSource{count: 2}, nil)
	if err := o.Run(context.Background(), conn, testInterview()); err == nil {
		t.Fatal("expected error when the session cannot start")
	}

	var sawError bool
	for _, v := range conn.messages() {
		if _, ok := v.(ws.ErrorMessage); ok {
			sawError = true
		}
	}
	if !sawError {
		t.Error("candidate was not told the session failed to start")
	}
}

func TestOrchestratorVideoMetricsAggregated(t *testing.T) {
	if testing.Short() {
		t.Skip("full session flow waits on real settle delays")
	}

	conn := newFakeConn()
	metrics := &fakeMetricStore{}

	done := runSession(t, testConfig(), &fakeSessionStore{}, metrics, &fakeTimelineSink{}, &fakeQuestionSource{count: 1}, nil, conn, testInterview())

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.QuestionMessage)
		return ok
	}, 5*time.Second)

	// Batch one: 4 of 5 frames engaged (80%), two movement spikes.
	conn.inbound <- ws.ClientMessage{
		Type:     ws.TypeVideoMetrics,
		Yaw:      []float64{0, 5, -10, 0, 60},
		Pitch:    []float64{0, 0, 0, 0, 0},
		Movement: []float64{0.1, 0.5, 0.1, 0.5, 0.1},
	}
	// Batch two: 3 of 5 frames engaged (60%), one spike.
	conn.inbound <- ws.ClientMessage{
		Type:     ws.TypeVideoMetrics,
		Yaw:      []float64{0, 0, 0, 60, 60},
		Pitch:    []float64{0, 0, 0, 0, 0},
		Movement: []float64{0.3, 0.1},
	}
	conn.inbound <- ws.ClientMessage{
		Type:       ws.TypeResponseComplete,
		Transcript: "A thorough answer about distributed systems design",
		Amplitude:  []float64{0.8, 0.8, 0.8},
	}

	conn.waitFor(t, func(v any) bool {
		_, ok := v.(ws.EndedMessage)
		return ok
	}, 10*time.Second)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.metrics) != 1 {
		t.Fatalf("saved %d metric snapshots, expected 1", len(metrics.metrics))
	}
	// (80 + 60) / 2 across the two batches
	if metrics.metrics[0].EyeContactPercentage != 70.0 {
		t.Errorf("EyeContactPercentage = %v, expected 70.0", metrics.metrics[0].EyeContactPercentage)
	}
	if metrics.metrics[0].FidgetingCount != 3 {
		t.Errorf("FidgetingCount = %d, expected 3", metrics.metrics[0].FidgetingCount)
	}
	// Steady 0.8 amplitude maps to full confidence and stability.
	if metrics.metrics[0].VoiceConfidenceScore != 100.0 || metrics.metrics[0].VoiceStability != 100.0 {
		t.Errorf("voice scores = %v/%v, expected 100/100",
			metrics.metrics[0].VoiceConfidenceScore, metrics.metrics[0].VoiceStability)
	}
}
