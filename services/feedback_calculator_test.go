package services

import (
	"math"
	"strings"
	"testing"

	"github.com/anvekars/mockmate/backend/models"
)

func makeResponses(count, wordsEach int) models.ResponseList {
	words := make([]string, wordsEach)
	for i := range words {
		words[i] = "word"
	}
	answer := strings.Join(words, " ")

	responses := make(models.ResponseList, count)
	for i := range responses {
		responses[i] = models.Response{QuestionIndex: i, Response: answer}
	}
	return responses
}

func makeQuestions(count int) models.StringList {
	questions := make(models.StringList, count)
	for i := range questions {
		questions[i] = "Tell me about a project you worked on."
	}
	return questions
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestCalculateContentScore(t *testing.T) {
	calc := NewFeedbackCalculator()

	tests := []struct {
		name      string
		responses models.ResponseList
		questions models.StringList
		expected  float64
	}{
		{
			name:      "No responses - floor score",
			responses: nil,
			questions: makeQuestions(8),
			expected:  30.0,
		},
		{
			name:      "Full completion with thorough answers",
			responses: makeResponses(8, 45),
			questions: makeQuestions(8),
			expected:  100.0,
		},
		{
			name:      "Half completion with medium answers",
			responses: makeResponses(4, 20),
			questions: makeQuestions(8),
			expected:  59.0, // 0.5*0.4 + (30 + 10/20*70)/100*0.6
		},
		{
			name:      "Full completion with very short answers",
			responses: makeResponses(8, 5),
			questions: makeQuestions(8),
			expected:  58.0, // 1.0*0.4 + 0.3*0.6
		},
		{
			name:      "More responses than questions is capped",
			responses: makeResponses(3, 45),
			questions: makeQuestions(2),
			expected:  100.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculateContentScore(tt.responses, tt.questions)
			if !almostEqual(got, tt.expected) {
				t.Errorf("CalculateContentScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateCommunicationScore(t *testing.T) {
	calc := NewFeedbackCalculator()

	tests := []struct {
		name     string
		metric   *models.InterviewMetric
		expected float64
	}{
		{
			name:     "Nil metric - neutral",
			metric:   nil,
			expected: 70.0,
		},
		{
			name: "Clean speech in the ideal band",
			metric: &models.InterviewMetric{
				FillerWordsCount:     2,
				SpeechRateWPM:        130,
				AveragePauseDuration: 1.5,
			},
			expected: 100.0,
		},
		{
			name: "Filler count interpolates between thresholds",
			metric: &models.InterviewMetric{
				FillerWordsCount: 6,
			},
			// fillers: 100 - 3/7*70 = 70; wpm and pause neutral at 70
			expected: 70.0,
		},
		{
			name: "Slow speech penalized linearly",
			metric: &models.InterviewMetric{
				FillerWordsCount: 1,
				SpeechRateWPM:    80,
			},
			// fillers 100; wpm 100 - 30*0.8 = 76; pause neutral 70
			expected: 82.0,
		},
		{
			name: "Many fillers and long pauses hit the floors",
			metric: &models.InterviewMetric{
				FillerWordsCount:     12,
				SpeechRateWPM:        130,
				AveragePauseDuration: 6.0,
			},
			// fillers 30; wpm 100; pause 40
			expected: 170.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculateCommunicationScore(tt.metric)
			if !almostEqual(got, tt.expected) {
				t.Errorf("CalculateCommunicationScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateConfidenceScore(t *testing.T) {
	calc := NewFeedbackCalculator()

	tests := []struct {
		name     string
		metric   *models.InterviewMetric
		expected float64
	}{
		{
			name:     "Nil metric - neutral",
			metric:   nil,
			expected: 70.0,
		},
		{
			name: "Strong presence",
			metric: &models.InterviewMetric{
				EyeContactPercentage: 85,
				FidgetingCount:       1,
				VoiceConfidenceScore: 90,
			},
			expected: 100.0,
		},
		{
			name: "Missing voice data stays neutral",
			metric: &models.InterviewMetric{
				EyeContactPercentage: 85,
				FidgetingCount:       1,
			},
			expected: 90.0,
		},
		{
			name: "Everything at the floor",
			metric: &models.InterviewMetric{
				EyeContactPercentage: 30,
				FidgetingCount:       15,
				VoiceConfidenceScore: 35,
			},
			expected: 30.0,
		},
		{
			name: "Eye contact interpolates between thresholds",
			metric: &models.InterviewMetric{
				EyeContactPercentage: 55,
			},
			// eye: 30 + 15/30*70 = 65; fidget 0 scores 100; voice neutral 70
			expected: 235.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculateConfidenceScore(tt.metric)
			if !almostEqual(got, tt.expected) {
				t.Errorf("CalculateConfidenceScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateAllScores(t *testing.T) {
	calc := NewFeedbackCalculator()

	t.Run("Perfect session scores 100 overall", func(t *testing.T) {
		interview := &models.Interview{
			QuestionsAsked: makeQuestions(8),
			ResponsesGiven: makeResponses(8, 45),
		}
		metric := &models.InterviewMetric{
			FillerWordsCount:     2,
			SpeechRateWPM:        130,
			AveragePauseDuration: 1.5,
			EyeContactPercentage: 85,
			FidgetingCount:       1,
			VoiceConfidenceScore: 90,
		}

		scores := calc.CalculateAllScores(interview, metric)
		if scores.OverallScore != 100.0 {
			t.Errorf("OverallScore = %v, expected 100.0", scores.OverallScore)
		}
		if scores.ContentScore != 100.0 || scores.CommunicationScore != 100.0 || scores.ConfidenceScore != 100.0 {
			t.Errorf("category scores = %v/%v/%v, expected all 100.0",
				scores.ContentScore, scores.CommunicationScore, scores.ConfidenceScore)
		}
	})

	t.Run("Overall is weighted from rounded category values", func(t *testing.T) {
		interview := &models.Interview{QuestionsAsked: makeQuestions(8)}
		metric := &models.InterviewMetric{FillerWordsCount: 6}

		scores := calc.CalculateAllScores(interview, metric)

		// content 30.0, communication 70.0, confidence (30+100+70)/3
		if scores.ContentScore != 30.0 {
			t.Errorf("ContentScore = %v, expected 30.0", scores.ContentScore)
		}
		if scores.CommunicationScore != 70.0 {
			t.Errorf("CommunicationScore = %v, expected 70.0", scores.CommunicationScore)
		}
		if scores.ConfidenceScore != 66.7 {
			t.Errorf("ConfidenceScore = %v, expected 66.7", scores.ConfidenceScore)
		}
		// 30*0.45 + 70*0.30 + 66.7*0.25 = 51.175 rounds to 51.2
		if scores.OverallScore != 51.2 {
			t.Errorf("OverallScore = %v, expected 51.2", scores.OverallScore)
		}
	})

	t.Run("Rounding happens before weighting", func(t *testing.T) {
		// Confidence averages to 78.333...; weighting the rounded 78.3
		// lands the overall at 51.0, the unrounded value would tip it
		// to 51.1.
		interview := &models.Interview{QuestionsAsked: makeQuestions(8)}
		metric := &models.InterviewMetric{
			FillerWordsCount:     2,
			SpeechRateWPM:        34.625,
			AveragePauseDuration: 6.0,
			EyeContactPercentage: 55,
			VoiceConfidenceScore: 0,
		}

		scores := calc.CalculateAllScores(interview, metric)
		if scores.CommunicationScore != 59.9 {
			t.Errorf("CommunicationScore = %v, expected 59.9", scores.CommunicationScore)
		}
		if scores.ConfidenceScore != 78.3 {
			t.Errorf("ConfidenceScore = %v, expected 78.3", scores.ConfidenceScore)
		}
		if scores.OverallScore != 51.0 {
			t.Errorf("OverallScore = %v, expected 51.0", scores.OverallScore)
		}
	})

	t.Run("Breakdown echoes the metric snapshot", func(t *testing.T) {
		interview := &models.Interview{
			QuestionsAsked: makeQuestions(4),
			ResponsesGiven: makeResponses(4, 20),
		}
		metric := &models.InterviewMetric{
			FillerWordsCount:     5,
			SpeechRateWPM:        125,
			AveragePauseDuration: 2.5,
			EyeContactPercentage: 60,
			FidgetingCount:       4,
			VoiceConfidenceScore: 75,
		}

		b := calc.CalculateAllScores(interview, metric).Breakdown
		if b.FillerWordsCount != 5 || b.SpeechRateWPM != 125 || b.FidgetingCount != 4 {
			t.Errorf("unexpected breakdown: %+v", b)
		}
		if b.AvgWordsPerAnswer != 20.0 {
			t.Errorf("AvgWordsPerAnswer = %v, expected 20.0", b.AvgWordsPerAnswer)
		}
		if b.TotalResponses != 4 {
			t.Errorf("TotalResponses = %v, expected 4", b.TotalResponses)
		}
	})

	t.Run("Overall recomputable from reported categories", func(t *testing.T) {
		cases := []*models.InterviewMetric{
			nil,
			{FillerWordsCount: 6},
			{FillerWordsCount: 7, SpeechRateWPM: 95.5, AveragePauseDuration: 3.2, EyeContactPercentage: 55, FidgetingCount: 6, VoiceConfidenceScore: 62},
			{FillerWordsCount: 2, SpeechRateWPM: 34.625, AveragePauseDuration: 6.0, EyeContactPercentage: 55},
		}
		interview := &models.Interview{
			QuestionsAsked: makeQuestions(6),
			ResponsesGiven: makeResponses(4, 17),
		}

		for _, metric := range cases {
			s := calc.CalculateAllScores(interview, metric)
			want := round1(s.ContentScore*contentWeight + s.CommunicationScore*communicationWeight + s.ConfidenceScore*confidenceWeight)
			if s.OverallScore != want {
				t.Errorf("OverallScore = %v, expected %v recomputed from the rounded categories (metric %+v)",
					s.OverallScore, want, metric)
			}
		}
	})

	t.Run("Deterministic for identical input", func(t *testing.T) {
		interview := &models.Interview{
			QuestionsAsked: makeQuestions(6),
			ResponsesGiven: makeResponses(5, 25),
		}
		metric := &models.InterviewMetric{
			FillerWordsCount:     7,
			SpeechRateWPM:        95,
			AveragePauseDuration: 3.2,
			EyeContactPercentage: 55,
			FidgetingCount:       6,
			VoiceConfidenceScore: 62,
		}

		first := calc.CalculateAllScores(interview, metric)
		second := calc.CalculateAllScores(interview, metric)
		if first != second {
			t.Errorf("scores differ across runs: %+v vs %+v", first, second)
		}
	})
}
