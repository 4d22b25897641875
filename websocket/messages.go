package websocket

// Candidate message types.
const (
	TypeResponseComplete = "response_complete"
	TypeVideoMetrics     = "video_metrics"
	TypeEnd              = "end"
)

// ClientMessage is one decoded candidate frame. Type selects which of
// the remaining fields are meaningful. The browser streams raw
// telemetry samples; aggregation happens server-side.
type ClientMessage struct {
	Type       string    `json:"type"`
	Transcript string    `json:"transcript,omitempty"` // response_complete
	Amplitude  []float64 `json:"amplitude,omitempty"`  // response_complete, 0..1 per sample
	Yaw        []float64 `json:"yaw,omitempty"`        // video_metrics, degrees per frame
	Pitch      []float64 `json:"pitch,omitempty"`      // video_metrics, degrees per frame
	Movement   []float64 `json:"movement,omitempty"`   // video_metrics, magnitude per frame
	ShoulderY  []float64 `json:"shoulder_y,omitempty"` // video_metrics, normalized units
}

// Server-to-candidate messages.

type ReadyMessage struct {
	Type            string `json:"type"` // "ready"
	SessionID       string `json:"session_id"`
	JobRole         string `json:"job_role"`
	TotalQuestions  int    `json:"total_questions"`
	DurationMinutes int    `json:"duration_minutes"`
}

type QuestionMessage struct {
	Type     string `json:"type"` // "question"
	Text     string `json:"text"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Category string `json:"category"`
}

type AIAudioMessage struct {
	Type  string `json:"type"` // "ai_audio"
	Audio string `json:"audio"`
}

type AIDoneSpeakingMessage struct {
	Type string `json:"type"` // "ai_done_speaking"
}

type MetricsMessage struct {
	Type              string  `json:"type"` // "metrics"
	FillerWordsCount  int     `json:"filler_words_count"`
	TotalWords        int     `json:"total_words"`
	SpeechRateWPM     float64 `json:"speech_rate_wpm"`
	EyeContact        float64 `json:"eye_contact"`
	FidgetingCount    int     `json:"fidgeting_count"`
	ElapsedSeconds    int     `json:"elapsed_seconds"`
	QuestionsAnswered int     `json:"questions_answered"`
}

type WarningMessage struct {
	Type    string `json:"type"` // "warning"
	Message string `json:"message"`
}

type EndedMessage struct {
	Type            string `json:"type"` // "ended"
	Reason          string `json:"reason"`
	InterviewID     string `json:"interview_id"`
	TotalQuestions  int    `json:"total_questions"`
	TotalWords      int    `json:"total_words"`
	FillerWords     int    `json:"filler_words"`
	DurationSeconds int    `json:"duration_seconds"`
	Message         string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
