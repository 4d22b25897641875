package services

import (
	"math"
	"strings"

	"github.com/anvekars/mockmate/backend/models"
)

// Scoring thresholds.
const (
	fillerWordsGood = 3   // <= 3 fillers is clean speech
	fillerWordsPoor = 10  // >= 10 fillers is poor
	speechRateMin   = 110 // wpm, below this is too slow
	speechRateMax   = 160 // wpm, above this is too fast
	pauseGood       = 2.0 // seconds avg pause
	pausePoor       = 5.0

	eyeContactGood      = 70 // percent
	eyeContactPoor      = 40
	fidgetingGood       = 3
	fidgetingPoor       = 10
	voiceConfidenceGood = 70
	voiceConfidencePoor = 40

	minWordsPerAnswer = 30 // a thorough answer
	minWordsPoor      = 10
)

// Overall score weights.
const (
	contentWeight       = 0.45
	communicationWeight = 0.30
	confidenceWeight    = 0.25
)

// Breakdown carries the raw metric values the scores were derived
// from, for display and categorization.
type Breakdown struct {
	FillerWordsCount     int     `json:"filler_words_count"`
	SpeechRateWPM        float64 `json:"speech_rate_wpm"`
	AveragePauseDuration float64 `json:"average_pause_duration"`
	EyeContactPercentage float64 `json:"eye_contact_percentage"`
	FidgetingCount       int     `json:"fidgeting_count"`
	VoiceConfidenceScore float64 `json:"voice_confidence_score"`
	AvgWordsPerAnswer    float64 `json:"avg_words_per_answer"`
	TotalResponses       int     `json:"total_responses"`
}

// Scores is the complete deterministic scoring result. All four scores
// are in [0,100], rounded to one decimal place.
type Scores struct {
	ContentScore       float64   `json:"content_score"`
	CommunicationScore float64   `json:"communication_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	OverallScore       float64   `json:"overall_score"`
	Breakdown          Breakdown `json:"breakdown"`
}

// FeedbackCalculator computes content, communication and confidence
// scores from interview responses and the aggregated metric snapshot.
// Pure and deterministic; same inputs always yield the same scores.
type FeedbackCalculator struct{}

func NewFeedbackCalculator() *FeedbackCalculator {
	return &FeedbackCalculator{}
}

// CalculateAllScores computes the three category scores plus the
// weighted overall. Each category is rounded to one decimal before
// weighting, so the overall can always be recomputed from the reported
// category values.
func (c *FeedbackCalculator) CalculateAllScores(interview *models.Interview, metric *models.InterviewMetric) Scores {
	responses := interview.ResponsesGiven
	questions := interview.QuestionsAsked

	content := round1(c.CalculateContentScore(responses, questions))
	communication := round1(c.CalculateCommunicationScore(metric))
	confidence := round1(c.CalculateConfidenceScore(metric))

	overall := round1(content*contentWeight + communication*communicationWeight + confidence*confidenceWeight)

	return Scores{
		ContentScore:       content,
		CommunicationScore: communication,
		ConfidenceScore:    confidence,
		OverallScore:       overall,
		Breakdown:          c.breakdown(metric, responses),
	}
}

// CalculateContentScore blends answer completeness (how many questions
// were answered) with answer depth (average words per answer).
func (c *FeedbackCalculator) CalculateContentScore(responses models.ResponseList, questions models.StringList) float64 {
	if len(responses) == 0 {
		return 30.0
	}

	totalQuestions := len(questions)
	if totalQuestions < 1 {
		totalQuestions = 1
	}
	completionRatio := float64(len(responses)) / float64(totalQuestions)
	if completionRatio > 1.0 {
		completionRatio = 1.0
	}

	avgWords := averageWords(responses)

	var wordScore float64
	switch {
	case avgWords >= minWordsPerAnswer:
		wordScore = 100.0
	case avgWords <= minWordsPoor:
		wordScore = 30.0
	default:
		wordScore = 30 + (avgWords-minWordsPoor)/(minWordsPerAnswer-minWordsPoor)*70
	}

	return (completionRatio*0.4 + (wordScore/100)*0.6) * 100
}

// CalculateCommunicationScore averages filler-word, speech-rate and
// pause sub-scores. A nil metric means no speech data was captured and
// scores a neutral 70.
func (c *FeedbackCalculator) CalculateCommunicationScore(metric *models.InterviewMetric) float64 {
	if metric == nil {
		return 70.0
	}

	var scores []float64

	fillers := float64(metric.FillerWordsCount)
	switch {
	case fillers <= fillerWordsGood:
		scores = append(scores, 100.0)
	case fillers >= fillerWordsPoor:
		scores = append(scores, 30.0)
	default:
		scores = append(scores, 100-(fillers-fillerWordsGood)/(fillerWordsPoor-fillerWordsGood)*70)
	}

	wpm := metric.SpeechRateWPM
	switch {
	case wpm == 0:
		scores = append(scores, 70.0)
	case wpm >= speechRateMin && wpm <= speechRateMax:
		scores = append(scores, 100.0)
	case wpm < speechRateMin:
		scores = append(scores, math.Max(30, 100-(speechRateMin-wpm)*0.8))
	default:
		scores = append(scores, math.Max(30, 100-(wpm-speechRateMax)*0.8))
	}

	avgPause := metric.AveragePauseDuration
	switch {
	case avgPause == 0:
		scores = append(scores, 70.0)
	case avgPause <= pauseGood:
		scores = append(scores, 100.0)
	case avgPause >= pausePoor:
		scores = append(scores, 40.0)
	default:
		scores = append(scores, 100-(avgPause-pauseGood)/(pausePoor-pauseGood)*60)
	}

	return mean(scores)
}

// CalculateConfidenceScore averages eye-contact, fidgeting and voice
// sub-scores. A nil metric scores a neutral 70.
func (c *FeedbackCalculator) CalculateConfidenceScore(metric *models.InterviewMetric) float64 {
	if metric == nil {
		return 70.0
	}

	var scores []float64

	eye := metric.EyeContactPercentage
	switch {
	case eye >= eyeContactGood:
		scores = append(scores, 100.0)
	case eye <= eyeContactPoor:
		scores = append(scores, 30.0)
	default:
		scores = append(scores, 30+(eye-eyeContactPoor)/(eyeContactGood-eyeContactPoor)*70)
	}

	fidget := float64(metric.FidgetingCount)
	switch {
	case fidget <= fidgetingGood:
		scores = append(scores, 100.0)
	case fidget >= fidgetingPoor:
		scores = append(scores, 30.0)
	default:
		scores = append(scores, 100-(fidget-fidgetingGood)/(fidgetingPoor-fidgetingGood)*70)
	}

	voice := metric.VoiceConfidenceScore
	switch {
	case voice == 0:
		scores = append(scores, 70.0)
	case voice >= voiceConfidenceGood:
		scores = append(scores, 100.0)
	case voice <= voiceConfidencePoor:
		scores = append(scores, 30.0)
	default:
		scores = append(scores, 30+(voice-voiceConfidencePoor)/(voiceConfidenceGood-voiceConfidencePoor)*70)
	}

	return mean(scores)
}

func (c *FeedbackCalculator) breakdown(metric *models.InterviewMetric, responses models.ResponseList) Breakdown {
	b := Breakdown{
		AvgWordsPerAnswer: round1(averageWords(responses)),
		TotalResponses:    len(responses),
	}
	if metric != nil {
		b.FillerWordsCount = metric.FillerWordsCount
		b.SpeechRateWPM = metric.SpeechRateWPM
		b.AveragePauseDuration = metric.AveragePauseDuration
		b.EyeContactPercentage = metric.EyeContactPercentage
		b.FidgetingCount = metric.FidgetingCount
		b.VoiceConfidenceScore = metric.VoiceConfidenceScore
	}
	return b
}

func averageWords(responses models.ResponseList) float64 {
	if len(responses) == 0 {
		return 0
	}
	total := 0
	for _, r := range responses {
		total += len(strings.Fields(r.Response))
	}
	return float64(total) / float64(len(responses))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
