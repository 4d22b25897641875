package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anvekars/mockmate/backend/models"
	"google.golang.org/genai"
)

// Narrative is the model-generated portion of a feedback report.
type Narrative struct {
	DetailedFeedback       string   `json:"detailed_feedback"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// FeedbackGenerator produces the narrative review and improvement tips
// from the deterministic scoring results. The model is asked for a
// strict JSON object; anything else is an upstream error and callers
// fall back to DefaultNarrative.
type FeedbackGenerator struct {
	genaiClient *genai.Client
	model       string
}

func NewFeedbackGenerator(apiKey, model string) *FeedbackGenerator {
	if apiKey == "" {
		slog.Warn("Gemini API key not configured, narrative feedback will use templates")
		return &FeedbackGenerator{model: model}
	}

	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return &FeedbackGenerator{model: model}
	}

	return &FeedbackGenerator{genaiClient: genaiClient, model: model}
}

// Generate asks the model for narrative feedback. Scores and
// categorized findings are already computed; the model only writes
// prose around them. Returns an UpstreamError when the provider fails
// or returns malformed JSON.
func (g *FeedbackGenerator) Generate(ctx context.Context, jobRole string, scores Scores, categorized CategorizedFeedback, questions models.StringList, responses models.ResponseList) (*Narrative, error) {
	if g.genaiClient == nil {
		return nil, upstreamErr("gemini", "generate feedback", fmt.Errorf("client not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prompt := g.buildPrompt(jobRole, scores, categorized, questions, responses)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a supportive interview coach. Return only valid JSON.",
			genai.RoleUser,
		),
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return nil, upstreamErr("gemini", "generate feedback", err)
	}

	narrative, err := parseNarrative(result.Text())
	if err != nil {
		return nil, upstreamErr("gemini", "parse feedback", err)
	}

	slog.Info("Narrative feedback generated", "job_role", jobRole, "suggestions", len(narrative.ImprovementSuggestions))
	return narrative, nil
}

// buildPrompt summarizes scores, findings and a capped Q&A sample.
// Only the first five question/answer pairs are included, answers
// truncated to 200 characters, to keep the prompt small.
func (g *FeedbackGenerator) buildPrompt(jobRole string, scores Scores, categorized CategorizedFeedback, questions models.StringList, responses models.ResponseList) string {
	var qa strings.Builder
	for i, q := range questions {
		if i >= 5 {
			break
		}
		answer := ""
		if i < len(responses) {
			answer = responses[i].Response
			if len(answer) > 200 {
				answer = answer[:200]
			}
		}
		fmt.Fprintf(&qa, "\nQ%d: %s\nA%d: %s\n", i+1, q, i+1, answer)
	}

	rightJSON, _ := json.MarshalIndent(categorized.Strengths, "", "  ")
	wrongJSON, _ := json.MarshalIndent(categorized.Weaknesses, "", "  ")

	return fmt.Sprintf(`You are an expert interview coach analyzing a mock interview.

Candidate role: %s
Overall score: %.1f/100
Content score: %.1f/100
Communication score: %.1f/100
Confidence score: %.1f/100

What went well:
%s

What needs improvement:
%s

Sample Q&A from the interview:
%s

Write a constructive performance review with:
1. detailed_feedback: 3-4 sentences of honest, encouraging feedback referencing specific scores
2. improvement_suggestions: exactly 4 actionable tips to improve next time

Return ONLY valid JSON:
{
    "detailed_feedback": "...",
    "improvement_suggestions": ["tip1", "tip2", "tip3", "tip4"]
}`,
		jobRole,
		scores.OverallScore,
		scores.ContentScore,
		scores.CommunicationScore,
		scores.ConfidenceScore,
		string(rightJSON),
		string(wrongJSON),
		qa.String(),
	)
}

// parseNarrative strips markdown code fences and decodes the strict
// JSON contract. An empty detailed_feedback counts as malformed.
func parseNarrative(raw string) (*Narrative, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var narrative Narrative
	if err := json.Unmarshal([]byte(cleaned), &narrative); err != nil {
		return nil, fmt.Errorf("invalid feedback JSON: %w", err)
	}
	if narrative.DetailedFeedback == "" {
		return nil, fmt.Errorf("feedback JSON missing detailed_feedback")
	}
	return &narrative, nil
}

// DefaultNarrative is the template fallback used when the model is
// unavailable. The review text depends only on the overall score band.
func DefaultNarrative(overallScore float64) *Narrative {
	var feedback string
	switch {
	case overallScore >= 80:
		feedback = "Excellent performance! You demonstrated strong communication skills " +
			"and provided thorough, well-structured answers. Your confidence came " +
			"through clearly. Keep up the great work and continue practicing."
	case overallScore >= 60:
		feedback = "Good effort overall. You showed solid foundational skills but there " +
			"is room to improve answer depth and communication clarity. Focus on " +
			"structuring your responses using the STAR method for better results."
	default:
		feedback = "This was a good practice session. Your responses need more depth " +
			"and confidence. Focus on preparation: research common questions for " +
			"your target role and practice answering them out loud regularly."
	}

	return &Narrative{
		DetailedFeedback: feedback,
		ImprovementSuggestions: []string{
			"Use the STAR method (Situation, Task, Action, Result) for behavioral questions",
			"Practice reducing filler words by pausing briefly instead of saying 'um' or 'uh'",
			"Maintain eye contact with the camera to project confidence",
			"Prepare 2-3 detailed examples from your experience for common question types",
		},
	}
}
