package services

import (
	"fmt"

	"github.com/anvekars/mockmate/backend/models"
)

// CategorizedFeedback sorts metric findings into what went right and
// what went wrong, plus flat message lists for display.
type CategorizedFeedback struct {
	WhatWentRight []models.Observation `json:"what_went_right"`
	WhatWentWrong []models.Observation `json:"what_went_wrong"`
	Strengths     []string             `json:"strengths"`
	Weaknesses    []string             `json:"weaknesses"`
}

// FeedbackCategorizer applies rule-based thresholds to the breakdown
// and scores. No model call involved; metrics in the indeterminate
// middle band are simply not mentioned.
type FeedbackCategorizer struct{}

func NewFeedbackCategorizer() *FeedbackCategorizer {
	return &FeedbackCategorizer{}
}

// Categorize evaluates each metric in a fixed order so output is
// stable for identical input.
func (c *FeedbackCategorizer) Categorize(scores Scores, breakdown Breakdown) CategorizedFeedback {
	var right, wrong []models.Observation

	addRight := func(metric, value, message string) {
		right = append(right, models.Observation{Metric: metric, Value: value, Message: message})
	}
	addWrong := func(metric, value, message string) {
		wrong = append(wrong, models.Observation{Metric: metric, Value: value, Message: message})
	}

	// Communication checks
	fillers := breakdown.FillerWordsCount
	if fillers <= 3 {
		addRight("Filler Words", fmt.Sprintf("%d", fillers),
			fmt.Sprintf("Only %d filler words, very clean speech!", fillers))
	} else if fillers >= 8 {
		addWrong("Filler Words", fmt.Sprintf("%d", fillers),
			fmt.Sprintf("Used %d filler words (um, uh, like). Practice pausing instead.", fillers))
	}

	wpm := breakdown.SpeechRateWPM
	if wpm > 0 {
		if wpm >= 110 && wpm <= 160 {
			addRight("Speech Rate", fmt.Sprintf("%.0f wpm", wpm),
				fmt.Sprintf("Great pace at %.0f wpm, easy to follow.", wpm))
		} else if wpm < 100 {
			addWrong("Speech Rate", fmt.Sprintf("%.0f wpm", wpm),
				fmt.Sprintf("Speaking too slowly at %.0f wpm. Aim for 120-150 wpm.", wpm))
		} else if wpm > 170 {
			addWrong("Speech Rate", fmt.Sprintf("%.0f wpm", wpm),
				fmt.Sprintf("Speaking too fast at %.0f wpm. Slow down to 120-150 wpm.", wpm))
		}
	}

	pause := breakdown.AveragePauseDuration
	if pause > 0 {
		if pause <= 2.0 {
			addRight("Pauses", fmt.Sprintf("%.1fs avg", pause),
				"Short, confident pauses between answers.")
		} else if pause >= 5.0 {
			addWrong("Pauses", fmt.Sprintf("%.1fs avg", pause),
				fmt.Sprintf("Long pauses averaging %.1fs. Prepare answers in advance.", pause))
		}
	}

	// Confidence checks
	eye := breakdown.EyeContactPercentage
	if eye >= 70 {
		addRight("Eye Contact", fmt.Sprintf("%.0f%%", eye),
			fmt.Sprintf("Excellent eye contact at %.0f%%, shows confidence!", eye))
	} else if eye <= 40 && eye > 0 {
		addWrong("Eye Contact", fmt.Sprintf("%.0f%%", eye),
			fmt.Sprintf("Low eye contact at %.0f%%. Look directly at the camera.", eye))
	}

	fidget := breakdown.FidgetingCount
	if fidget <= 3 {
		addRight("Body Language", fmt.Sprintf("%d movements", fidget),
			"Calm and composed body language throughout.")
	} else if fidget >= 8 {
		addWrong("Body Language", fmt.Sprintf("%d movements", fidget),
			fmt.Sprintf("Excessive movement detected (%d times). Try to stay still.", fidget))
	}

	voice := breakdown.VoiceConfidenceScore
	if voice >= 70 {
		addRight("Voice Confidence", fmt.Sprintf("%.0f/100", voice),
			"Voice sounds confident and steady.")
	} else if voice > 0 && voice <= 40 {
		addWrong("Voice Confidence", fmt.Sprintf("%.0f/100", voice),
			"Voice sounds hesitant. Practice speaking with more conviction.")
	}

	// Content checks
	avgWords := breakdown.AvgWordsPerAnswer
	if avgWords >= 40 {
		addRight("Answer Depth", fmt.Sprintf("%.0f words avg", avgWords),
			fmt.Sprintf("Detailed answers averaging %.0f words, thorough responses!", avgWords))
	} else if avgWords <= 15 && avgWords > 0 {
		addWrong("Answer Depth", fmt.Sprintf("%.0f words avg", avgWords),
			fmt.Sprintf("Short answers averaging %.0f words. Elaborate more using the STAR method.", avgWords))
	}

	total := breakdown.TotalResponses
	if total >= 7 {
		addRight("Completion", fmt.Sprintf("%d questions", total),
			fmt.Sprintf("Answered %d questions, great endurance!", total))
	} else if total <= 3 {
		addWrong("Completion", fmt.Sprintf("%d questions", total),
			fmt.Sprintf("Only answered %d questions. Try to complete the full interview.", total))
	}

	// Score-level checks
	if scores.CommunicationScore >= 80 {
		addRight("Overall Communication", fmt.Sprintf("%.1f/100", scores.CommunicationScore),
			"Excellent communication throughout the interview.")
	}
	if scores.ConfidenceScore >= 80 {
		addRight("Overall Confidence", fmt.Sprintf("%.1f/100", scores.ConfidenceScore),
			"Projected strong confidence and presence.")
	}
	if scores.ContentScore < 50 {
		addWrong("Overall Content", fmt.Sprintf("%.1f/100", scores.ContentScore),
			"Answers lacked depth. Use the STAR method: Situation, Task, Action, Result.")
	}

	strengths := make([]string, 0, len(right))
	for _, o := range right {
		strengths = append(strengths, o.Message)
	}
	weaknesses := make([]string, 0, len(wrong))
	for _, o := range wrong {
		weaknesses = append(weaknesses, o.Message)
	}

	return CategorizedFeedback{
		WhatWentRight: right,
		WhatWentWrong: wrong,
		Strengths:     strengths,
		Weaknesses:    weaknesses,
	}
}
