package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ResumeProfile is the structured data extracted from a resume.
type ResumeProfile struct {
	JobRole         string   `json:"job_role"`
	ExperienceYears int      `json:"experience_years"`
	Skills          []string `json:"skills"`
	Summary         string   `json:"summary"`
	ExtractedText   string   `json:"-"`
}

// ResumeParser extracts a candidate profile from an uploaded resume.
// The model reads the PDF directly; when it is unavailable or fails,
// a keyword heuristic runs over whatever text we have. Parsing never
// fails an upload.
type ResumeParser struct {
	genaiClient *genai.Client
	model       string
}

func NewResumeParser(apiKey, model string) *ResumeParser {
	if apiKey == "" {
		slog.Warn("Gemini API key not configured, resume parsing will use heuristics")
		return &ResumeParser{model: model}
	}

	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		slog.Error("Failed to create genai client", "error", err)
		return &ResumeParser{model: model}
	}

	return &ResumeParser{genaiClient: genaiClient, model: model}
}

const resumeParsePrompt = `Parse this resume and extract structured information.
The text may have formatting issues (merged words), interpret it carefully.

Return ONLY a valid JSON object:
{
    "job_role": "most recent job title (e.g. Machine Learning Engineer)",
    "experience_years": <integer or 0>,
    "skills": ["skill1", "skill2"],
    "summary": "2-sentence professional summary"
}

Rules:
- job_role: use the most recent job title, NOT a bullet point description
- If text has merged words like "MachineLearningEngineer", split them correctly
- Return ONLY JSON, no markdown, no explanation`

// ParsePDF extracts the profile from raw PDF bytes.
func (p *ResumeParser) ParsePDF(ctx context.Context, fileBytes []byte) *ResumeProfile {
	if p.genaiClient == nil {
		return BasicParse("")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(resumeParsePrompt),
		{
			InlineData: &genai.Blob{
				MIMEType: "application/pdf",
				Data:     fileBytes,
			},
		},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a precise resume parser. Return only valid JSON.",
			genai.RoleUser,
		),
	}

	result, err := p.genaiClient.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		slog.Warn("Resume parsing failed, using heuristic parser", "error", err)
		return BasicParse("")
	}

	profile, err := decodeProfile(result.Text())
	if err != nil {
		slog.Warn("Resume JSON malformed, using heuristic parser", "error", err)
		return BasicParse("")
	}

	slog.Info("Resume parsed", "job_role", profile.JobRole, "skills", len(profile.Skills))
	return profile
}

// ParseText extracts the profile from plain resume text.
func (p *ResumeParser) ParseText(ctx context.Context, text string) *ResumeProfile {
	if p.genaiClient == nil {
		return BasicParse(text)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	truncated := text
	if len(truncated) > 4000 {
		truncated = truncated[:4000]
	}
	prompt := fmt.Sprintf("%s\n\nResume:\n%s", resumeParsePrompt, truncated)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a precise resume parser. Return only valid JSON.",
			genai.RoleUser,
		),
	}

	result, err := p.genaiClient.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		slog.Warn("Resume parsing failed, using heuristic parser", "error", err)
		return BasicParse(text)
	}

	profile, err := decodeProfile(result.Text())
	if err != nil {
		slog.Warn("Resume JSON malformed, using heuristic parser", "error", err)
		return BasicParse(text)
	}

	profile.ExtractedText = text
	return profile
}

func decodeProfile(raw string) (*ResumeProfile, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	var profile ResumeProfile
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &profile); err != nil {
		return nil, err
	}
	if profile.JobRole == "" {
		profile.JobRole = "Software Engineer"
	}
	return &profile, nil
}

var (
	skillKeywords = []string{
		"python", "javascript", "typescript", "react", "node", "sql",
		"java", "c++", "c#", "aws", "azure", "docker", "kubernetes",
		"machine learning", "deep learning", "fastapi", "django", "flask",
		"mongodb", "postgresql", "redis", "git", "linux", "html", "css",
		"next.js", "tensorflow", "pytorch", "scikit-learn", "pandas",
		"numpy", "spark", "kafka", "graphql", "go", "grpc",
	}

	rolePattern = regexp.MustCompile(`(?i)\b(machine learning|software|data|backend|frontend|full.?stack|devops|cloud|ml|ai|nlp)\s+(engineer|developer|scientist|analyst|architect|intern|lead)\b`)
	expPattern  = regexp.MustCompile(`(?i)(\d+)\+?\s*(?:years?|yrs?)\s*(?:of\s*)?(?:experience|exp)`)
)

// BasicParse is the heuristic fallback: keyword skills, a role pattern
// over the opening lines, a years-of-experience pattern anywhere.
func BasicParse(text string) *ResumeProfile {
	textLower := strings.ToLower(text)

	var skills []string
	for _, skill := range skillKeywords {
		if strings.Contains(textLower, skill) {
			skills = append(skills, skill)
		}
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	jobRole := "Software Engineer"
	limit := len(lines)
	if limit > 20 {
		limit = 20
	}
	for _, line := range lines[:limit] {
		if match := rolePattern.FindString(line); match != "" {
			jobRole = titleCase(match)
			break
		}
	}

	expYears := 0
	if match := expPattern.FindStringSubmatch(text); match != nil {
		expYears, _ = strconv.Atoi(match[1])
	}

	summary := ""
	if len(lines) > 0 {
		end := len(lines)
		if end > 3 {
			end = 3
		}
		summary = strings.Join(lines[:end], " ")
	}

	return &ResumeProfile{
		JobRole:         jobRole,
		ExperienceYears: expYears,
		Skills:          skills,
		Summary:         summary,
		ExtractedText:   text,
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
