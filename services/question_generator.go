package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Question is one prepared interview question with its follow-up.
type Question struct {
	Question string `json:"question"`
	Type     string `json:"type"`     // behavioral, technical, situational
	Category string `json:"category"` // experience, skills, problem-solving, communication, leadership
	FollowUp string `json:"follow_up,omitempty"`
}

// QuestionGenerator prepares a personalized question set from the
// candidate's resume profile. Falls back to a fixed question bank when
// the model is unavailable so a session can always start.
type QuestionGenerator struct {
	genaiClient *genai.Client
	model       string
}

func NewQuestionGenerator(apiKey, model string) *QuestionGenerator {
	if apiKey == "" {
		slog.Warn("Gemini API key not configured, using default question bank")
		return &QuestionGenerator{model: model}
	}

	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return &QuestionGenerator{model: model}
	}

	return &QuestionGenerator{genaiClient: genaiClient, model: model}
}

// GenerateQuestions produces numQuestions tailored questions. Any
// provider or parse failure degrades to the default bank; starting an
// interview never fails on question generation.
func (q *QuestionGenerator) GenerateQuestions(ctx context.Context, jobRole string, skills []string, experienceYears int, interviewType string, numQuestions int) []Question {
	if q.genaiClient == nil {
		return DefaultQuestions(jobRole, numQuestions)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	skillsStr := "general software skills"
	if len(skills) > 0 {
		if len(skills) > 10 {
			skills = skills[:10]
		}
		skillsStr = strings.Join(skills, ", ")
	}
	expStr := "some"
	if experienceYears > 0 {
		expStr = fmt.Sprintf("%d years", experienceYears)
	}

	prompt := fmt.Sprintf(`You are an expert interviewer preparing questions for a %s candidate.

Candidate profile:
- Role: %s
- Experience: %s
- Key skills: %s
- Interview type: %s

Generate exactly %d interview questions.
Mix of: behavioral (40%%), technical (40%%), situational (20%%).

Return ONLY a JSON array:
[
    {
        "question": "full question text",
        "type": "behavioral|technical|situational",
        "category": "experience|skills|problem-solving|communication|leadership",
        "follow_up": "one follow-up question to dig deeper"
    }
]

Rules:
- Make questions specific to the candidate's role and skills
- Start with easier questions, get harder toward the end
- Include at least 2 questions about listed skills
- No yes/no questions
- Return ONLY the JSON array`,
		jobRole, jobRole, expStr, skillsStr, interviewType, numQuestions)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are an expert technical interviewer. Return only valid JSON arrays.",
			genai.RoleUser,
		),
	}

	result, err := q.genaiClient.Models.GenerateContent(ctx, q.model, genai.Text(prompt), config)
	if err != nil {
		slog.Warn("Question generation failed, using default bank", "error", err, "job_role", jobRole)
		return DefaultQuestions(jobRole, numQuestions)
	}

	cleaned := strings.TrimSpace(result.Text())
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var questions []Question
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &questions); err != nil || len(questions) == 0 {
		slog.Warn("Question JSON malformed, using default bank", "error", err, "job_role", jobRole)
		return DefaultQuestions(jobRole, numQuestions)
	}
	if numQuestions > 0 && len(questions) > numQuestions {
		questions = questions[:numQuestions]
	}

	slog.Info("Generated interview questions", "count", len(questions), "job_role", jobRole)
	return questions
}

// DefaultQuestions returns the first n questions of the fixed fallback
// bank, or the whole bank when n is zero or exceeds it.
func DefaultQuestions(jobRole string, n int) []Question {
	bank := []Question{
		{
			Question: fmt.Sprintf("Tell me about yourself and your journey to becoming a %s.", jobRole),
			Type:     "behavioral",
			Category: "experience",
			FollowUp: "What specific experience prepared you most for this role?",
		},
		{
			Question: "Describe a challenging technical problem you solved recently.",
			Type:     "technical",
			Category: "problem-solving",
			FollowUp: "What would you do differently now?",
		},
		{
			Question: "How do you stay updated with the latest industry trends?",
			Type:     "behavioral",
			Category: "skills",
			FollowUp: "Can you give an example of something new you implemented?",
		},
		{
			Question: "Tell me about a time you worked under pressure to meet a deadline.",
			Type:     "situational",
			Category: "communication",
			FollowUp: "How did you prioritize your tasks?",
		},
		{
			Question: "Describe your experience working in a team environment.",
			Type:     "behavioral",
			Category: "leadership",
			FollowUp: "What role do you usually take in team projects?",
		},
		{
			Question: "What is your greatest professional achievement?",
			Type:     "behavioral",
			Category: "experience",
			FollowUp: "What impact did this have on the team or company?",
		},
		{
			Question: "Where do you see yourself in 3 years?",
			Type:     "situational",
			Category: "experience",
			FollowUp: "What steps are you taking to get there?",
		},
		{
			Question: "Do you have any questions for us?",
			Type:     "behavioral",
			Category: "communication",
		},
	}

	if n <= 0 || n >= len(bank) {
		return bank
	}
	return bank[:n]
}
