package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anvekars/mockmate/backend/models"
	ws "github.com/anvekars/mockmate/backend/websocket"
)

// Settle delays between conversational turns, giving the candidate a
// natural beat before the next prompt.
const (
	settleAfterIntro   = 2 * time.Second
	settleAfterAnswer  = 1500 * time.Millisecond
	settleAfterClosing = 3 * time.Second
)

// End reasons recorded on the final "ended" message.
const (
	EndReasonCompleted      = "completed"
	EndReasonTimeout        = "timeout"
	EndReasonSilence        = "silence"
	EndReasonCandidateEnded = "candidate_ended"
	EndReasonDisconnected   = "disconnected"
	EndReasonError          = "error"
)

// CandidateConn is the candidate side of a live session: a stream of
// decoded inbound messages and a non-blocking JSON sender.
type CandidateConn interface {
	Inbound() <-chan ws.ClientMessage
	SendJSON(v any)
}

// SessionStore persists lifecycle transitions.
type SessionStore interface {
	StartSession(ctx context.Context, sessionID, userID string) (*models.Interview, error)
	EndSession(ctx context.Context, sessionID, userID string, questionsAsked []string, responsesGiven []models.Response, videoBlobURL string) (*models.Interview, error)
	MarkFailed(ctx context.Context, sessionID, userID string) error
}

// MetricStore persists the end-of-session metric snapshot.
type MetricStore interface {
	CreateMetric(ctx context.Context, metric *models.InterviewMetric) error
}

// TimelineSink persists timeline events.
type TimelineSink interface {
	LogBatch(ctx context.Context, interviewID string, events []models.InterviewEvent) error
}

// QuestionSource prepares the question set for a session.
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, jobRole string, skills []string, experienceYears int, interviewType string, numQuestions int) []Question
}

// Orchestrator runs the live interview session loop. One goroutine per
// session owns all mutable state and selects over candidate input,
// upstream voice events and a policy ticker; nothing here is shared.
type Orchestrator struct {
	cfg       InterviewConfig
	sessions  SessionStore
	metrics   MetricStore
	timeline  TimelineSink
	questions QuestionSource
	analyzer  *AudioAnalyzer
	video     *VideoAnalyzer
	newVoice  func() VoiceClient
}

func NewOrchestrator(cfg InterviewConfig, sessions SessionStore, metrics MetricStore, timeline TimelineSink, questions QuestionSource, newVoice func() VoiceClient) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		sessions:  sessions,
		metrics:   metrics,
		timeline:  timeline,
		questions: questions,
		analyzer:  NewAudioAnalyzer(),
		video:     NewVideoAnalyzer(),
		newVoice:  newVoice,
	}
}

// sessionState is the per-session mutable state. Owned exclusively by
// the Run goroutine.
type sessionState struct {
	questionIndex      int
	questionsAsked     []string
	responses          []models.Response
	responseTimestamps []float64

	fillerWordsCount int
	totalWords       int
	eyeContactScores []float64 // percent per telemetry batch
	fidgetingEvents  int
	postureScores    []float64
	amplitudeSamples []float64

	startTime      time.Time
	lastActivity   time.Time
	aiSpeaking     bool
	pendingSpeech  []string
	awaitingAnswer bool
	wrapUpStarted  bool
	warned         bool
	ended          bool
	endReason      string

	pendingEvents []models.InterviewEvent
}

func (st *sessionState) elapsed() float64 {
	return time.Since(st.startTime).Seconds()
}

func (st *sessionState) logEvent(timestamp float64, eventType, severity, data string) {
	st.pendingEvents = append(st.pendingEvents, models.InterviewEvent{
		TimestampSeconds: timestamp,
		EventType:        eventType,
		Severity:         severity,
		EventData:        data,
	})
}

// Run drives one session from greeting to finalization. Returns after
// the interview is persisted; the candidate connection is left for the
// caller to close.
func (o *Orchestrator) Run(ctx context.Context, client CandidateConn, interview *models.Interview) error {
	jobRole := interview.JobRole
	if jobRole == "" {
		jobRole = "Software Engineer"
	}
	var skills []string
	expYears := 0
	if interview.Resume != nil {
		skills = interview.Resume.Skills
		expYears = interview.Resume.ExperienceYears
	}

	questions := o.questions.GenerateQuestions(ctx, jobRole, skills, expYears, interview.InterviewType, o.cfg.QuestionsTotal)

	if _, err := o.sessions.StartSession(ctx, interview.SessionID, interview.UserID); err != nil {
		client.SendJSON(ws.ErrorMessage{Type: "error", Message: "could not start session"})
		return fmt.Errorf("failed to start session: %w", err)
	}

	now := time.Now()
	st := &sessionState{
		startTime:    now,
		lastActivity: now,
		endReason:    EndReasonDisconnected,
	}

	// The session cannot run without its voice upstream. A failed
	// connection is terminal: tell the candidate, persist what exists,
	// and stop.
	var voice VoiceClient
	var voiceEvents <-chan RealtimeEvent
	if o.newVoice != nil {
		voice = o.newVoice()
		if err := voice.Connect(ctx); err != nil {
			slog.Error("Voice connection failed", "error", err, "session_id", interview.SessionID)
			client.SendJSON(ws.ErrorMessage{Type: "error", Message: "voice service unavailable"})
			st.endReason = EndReasonError
			o.finalize(ctx, client, interview, st)
			return fmt.Errorf("failed to connect voice upstream: %w", err)
		}
		voiceEvents = voice.Events()
		defer voice.Close()
	}

	client.SendJSON(ws.ReadyMessage{
		Type:            "ready",
		SessionID:       interview.SessionID,
		JobRole:         jobRole,
		TotalQuestions:  len(questions),
		DurationMinutes: int(o.cfg.HardLimit.Minutes()),
	})

	// Greeting, then the first question after a short settle.
	intro := fmt.Sprintf("Hello! I'm your AI interviewer today. I'll ask you several questions about your experience as a %s. Please answer using your microphone. Take your time with each answer. Let's begin.", jobRole)
	o.speak(ctx, voice, st, intro)
	settle := time.After(settleAfterIntro)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	defer o.finalize(ctx, client, interview, st)

	for !st.ended {
		select {
		case msg, ok := <-client.Inbound():
			if !ok {
				st.ended = true
				st.endReason = EndReasonDisconnected
				continue
			}
			st.lastActivity = time.Now()

			switch msg.Type {
			case ws.TypeResponseComplete:
				// An answer with no question outstanding is malformed
				// input and is dropped.
				if st.awaitingAnswer {
					settle = o.handleResponse(ctx, client, voice, st, questions, msg)
				}

			case ws.TypeVideoMetrics:
				o.handleVideoMetrics(st, msg)

			case ws.TypeEnd:
				st.ended = true
				st.endReason = EndReasonCandidateEnded
			}

		case ev, ok := <-voiceEvents:
			if !ok {
				// Upstream died mid-session. The interview cannot
				// continue without it.
				client.SendJSON(ws.ErrorMessage{Type: "error", Message: "voice service lost"})
				st.ended = true
				st.endReason = EndReasonError
				continue
			}
			switch ev.Type {
			case RealtimeAudioDelta:
				client.SendJSON(ws.AIAudioMessage{Type: "ai_audio", Audio: ev.AudioB64})
			case RealtimeDone:
				st.aiSpeaking = false
				client.SendJSON(ws.AIDoneSpeakingMessage{Type: "ai_done_speaking"})
				if len(st.pendingSpeech) > 0 {
					next := st.pendingSpeech[0]
					st.pendingSpeech = st.pendingSpeech[1:]
					o.speak(ctx, voice, st, next)
				}
			case RealtimeClosed:
				client.SendJSON(ws.ErrorMessage{Type: "error", Message: "voice service lost"})
				st.ended = true
				st.endReason = EndReasonError
			}

		case <-settle:
			settle = nil
			if st.wrapUpStarted {
				st.ended = true
				st.endReason = EndReasonCompleted
			} else {
				o.askQuestion(ctx, client, voice, st, questions)
			}

		case <-ticker.C:
			o.checkPolicy(client, st)

		case <-ctx.Done():
			st.ended = true
			st.endReason = EndReasonDisconnected
		}
	}

	return nil
}

// handleResponse records a finished answer and schedules the next turn.
func (o *Orchestrator) handleResponse(ctx context.Context, client CandidateConn, voice VoiceClient, st *sessionState, questions []Question, msg ws.ClientMessage) <-chan time.Time {
	st.awaitingAnswer = false
	elapsed := st.elapsed()
	transcript := msg.Transcript

	words := o.analyzer.CountWords(transcript)
	fillers := o.analyzer.CountFillerWords(transcript)
	st.totalWords += words
	st.fillerWordsCount += fillers
	st.amplitudeSamples = append(st.amplitudeSamples, msg.Amplitude...)

	st.responses = append(st.responses, models.Response{
		QuestionIndex: st.questionIndex - 1,
		Response:      transcript,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		WordCount:     words,
		FillerCount:   fillers,
	})
	st.responseTimestamps = append(st.responseTimestamps, elapsed)

	st.logEvent(elapsed, EventAnswerComplete, models.SeverityInfo,
		fmt.Sprintf(`{"question_index":%d,"word_count":%d}`, st.questionIndex-1, words))
	if fillers > 0 {
		severity := models.SeverityInfo
		if fillers >= fillerWordsGood {
			severity = models.SeverityWarning
		}
		st.logEvent(elapsed, EventFillerWord, severity, fmt.Sprintf(`{"count":%d}`, fillers))
	}

	o.sendMetrics(client, st, elapsed)

	// Past the soft limit or out of questions: one closing statement,
	// then finish after it settles.
	if elapsed >= o.cfg.SoftLimit.Seconds() || st.questionIndex >= len(questions) {
		return o.wrapUp(ctx, client, voice, st)
	}
	return time.After(settleAfterAnswer)
}

// handleVideoMetrics aggregates one batch of raw head-pose and movement
// telemetry into the session state.
func (o *Orchestrator) handleVideoMetrics(st *sessionState, msg ws.ClientMessage) {
	if len(msg.Yaw) > 0 {
		eye := o.video.EyeContactPercentage(msg.Yaw, msg.Pitch)
		st.eyeContactScores = append(st.eyeContactScores, eye)
		if eye <= 40 {
			st.logEvent(st.elapsed(), EventLowEyeContact, models.SeverityWarning,
				fmt.Sprintf(`{"eye_contact":%.1f}`, eye))
		}
	}

	if fidgets := o.video.CountFidgets(msg.Movement); fidgets > 0 {
		st.fidgetingEvents += fidgets
		st.logEvent(st.elapsed(), EventFidgeting, models.SeverityInfo,
			fmt.Sprintf(`{"count":%d}`, fidgets))
	}

	if len(msg.ShoulderY) > 0 {
		st.postureScores = append(st.postureScores, o.video.PostureScore(msg.ShoulderY))
	}
}

// checkPolicy enforces the time and silence limits on every poll tick.
func (o *Orchestrator) checkPolicy(client CandidateConn, st *sessionState) {
	elapsed := st.elapsed()

	if elapsed >= o.cfg.HardLimit.Seconds() {
		st.ended = true
		st.endReason = EndReasonTimeout
		return
	}

	if time.Since(st.lastActivity) >= o.cfg.SilenceLimit {
		st.ended = true
		st.endReason = EndReasonSilence
		return
	}

	remaining := o.cfg.HardLimit.Seconds() - elapsed
	if !st.warned && remaining >= 115 && remaining <= 125 {
		st.warned = true
		client.SendJSON(ws.WarningMessage{Type: "warning", Message: "2 minutes remaining"})
		st.logEvent(elapsed, EventTimeWarning, models.SeverityWarning, "")
	}
}

// askQuestion advances to the next question and marks it as awaiting
// an answer.
func (o *Orchestrator) askQuestion(ctx context.Context, client CandidateConn, voice VoiceClient, st *sessionState, questions []Question) {
	if st.questionIndex >= len(questions) {
		return
	}

	question := questions[st.questionIndex]
	st.questionsAsked = append(st.questionsAsked, question.Question)
	st.questionIndex++

	category := question.Category
	if category == "" {
		category = "general"
	}

	client.SendJSON(ws.QuestionMessage{
		Type:     "question",
		Text:     question.Question,
		Index:    st.questionIndex,
		Total:    len(questions),
		Category: category,
	})
	st.logEvent(st.elapsed(), EventQuestionAsked, models.SeverityInfo,
		fmt.Sprintf(`{"index":%d}`, st.questionIndex))

	st.awaitingAnswer = true
	o.speak(ctx, voice, st, question.Question)
}

// wrapUp speaks the closing statement and arms the final settle timer.
func (o *Orchestrator) wrapUp(ctx context.Context, client CandidateConn, voice VoiceClient, st *sessionState) <-chan time.Time {
	st.wrapUpStarted = true
	closing := "Thank you for that answer. That wraps up our interview today. You did great! I'm now generating your personalized feedback report."
	o.speak(ctx, voice, st, closing)
	return time.After(settleAfterClosing)
}

// speak issues one utterance to the voice upstream. At most one speak
// request may be outstanding; while a prior one is unacknowledged the
// text queues and is sent when its response completes.
func (o *Orchestrator) speak(ctx context.Context, voice VoiceClient, st *sessionState, text string) {
	if voice == nil {
		return
	}
	if st.aiSpeaking {
		st.pendingSpeech = append(st.pendingSpeech, text)
		return
	}
	if err := voice.Speak(ctx, text); err != nil {
		slog.Warn("Voice speak failed", "error", err)
		return
	}
	st.aiSpeaking = true
}

func (o *Orchestrator) sendMetrics(client CandidateConn, st *sessionState, elapsed float64) {
	speechRate := o.analyzer.SpeechRateWPM(st.totalWords, elapsed)

	client.SendJSON(ws.MetricsMessage{
		Type:              "metrics",
		FillerWordsCount:  st.fillerWordsCount,
		TotalWords:        st.totalWords,
		SpeechRateWPM:     round1(speechRate),
		EyeContact:        round1(meanOrZero(st.eyeContactScores)),
		FidgetingCount:    st.fidgetingEvents,
		ElapsedSeconds:    int(elapsed),
		QuestionsAnswered: len(st.responses),
	})
}

// finalize runs exactly once per session: the terminal "ended" message
// goes to the candidate first, then the conversation record, metric
// snapshot and timeline events are persisted. Persistence must not
// depend on the request context still being alive, so it runs on a
// fresh timeout context.
func (o *Orchestrator) finalize(ctx context.Context, client CandidateConn, interview *models.Interview, st *sessionState) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	elapsed := st.elapsed()
	st.logEvent(elapsed, EventSessionEnded, models.SeverityInfo, fmt.Sprintf(`{"reason":%q}`, st.endReason))

	client.SendJSON(ws.EndedMessage{
		Type:            "ended",
		Reason:          st.endReason,
		InterviewID:     interview.ID,
		TotalQuestions:  len(st.questionsAsked),
		TotalWords:      st.totalWords,
		FillerWords:     st.fillerWordsCount,
		DurationSeconds: int(elapsed),
		Message:         endMessage(st.endReason),
	})

	if _, err := o.sessions.EndSession(saveCtx, interview.SessionID, interview.UserID, st.questionsAsked, st.responses, ""); err != nil {
		slog.Error("Failed to persist session end", "error", err, "session_id", interview.SessionID)
		if err := o.sessions.MarkFailed(saveCtx, interview.SessionID, interview.UserID); err != nil {
			slog.Error("Failed to mark session failed", "error", err, "session_id", interview.SessionID)
		}
		return
	}

	o.saveMetrics(saveCtx, interview.ID, st, elapsed)

	if err := o.timeline.LogBatch(saveCtx, interview.ID, st.pendingEvents); err != nil {
		slog.Error("Failed to persist timeline events", "error", err, "interview_id", interview.ID)
	}

	slog.Info("Session finalized",
		"session_id", interview.SessionID,
		"reason", st.endReason,
		"questions_asked", len(st.questionsAsked),
		"responses", len(st.responses))
}

func (o *Orchestrator) saveMetrics(ctx context.Context, interviewID string, st *sessionState, elapsed float64) {
	avgPause, longestPause := o.analyzer.AnalyzePauses(st.responseTimestamps)
	speechRate := o.analyzer.SpeechRateWPM(st.totalWords, elapsed)

	if longestPause >= pausePoor {
		st.logEvent(elapsed, EventLongPause, models.SeverityInfo,
			fmt.Sprintf(`{"longest_seconds":%.1f}`, longestPause))
	}

	metric := &models.InterviewMetric{
		InterviewID:          interviewID,
		FillerWordsCount:     st.fillerWordsCount,
		TotalWordsSpoken:     st.totalWords,
		AveragePauseDuration: avgPause,
		LongestPauseDuration: longestPause,
		SpeechRateWPM:        round1(speechRate),
		EyeContactPercentage: round1(meanOrZero(st.eyeContactScores)),
		FidgetingCount:       st.fidgetingEvents,
		PostureScore:         round1(meanOrZero(st.postureScores)),
		RecordedAt:           time.Now(),
	}

	// Zero means no audio samples arrived; scoring treats that as
	// neutral rather than penalizing it.
	if len(st.amplitudeSamples) > 0 {
		confidence, stability := o.analyzer.AnalyzeAmplitude(st.amplitudeSamples)
		metric.VoiceConfidenceScore = round1(confidence)
		metric.VoiceStability = round1(stability)
	}

	if err := o.metrics.CreateMetric(ctx, metric); err != nil {
		slog.Error("Failed to save session metrics", "error", err, "interview_id", interviewID)
	}
}

func meanOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return mean(values)
}

func endMessage(reason string) string {
	switch reason {
	case EndReasonCompleted:
		return "Great job! You've completed the interview."
	case EndReasonTimeout:
		return "Time's up! Great effort."
	case EndReasonSilence:
		return "Session ended due to inactivity."
	case EndReasonCandidateEnded:
		return "Interview ended."
	case EndReasonDisconnected:
		return "Connection lost. Your progress has been saved."
	case EndReasonError:
		return "Something went wrong on our end. Your progress has been saved."
	}
	return "Interview ended."
}
