package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/mvtrinh/examgate/config"
	"github.com/mvtrinh/examgate/internal/model"
)

// ExplanationService generates a short review explanation for a question the
// student answered incorrectly. It is an optional add-on: without an API key
// it stays non-functional and returns empty explanations.
type ExplanationService interface {
	ExplainMistake(question *model.Question, selectedOptionID uint) (string, error)
}

type explanationService struct {
	client *genai.GenerativeModel
	cfg    *config.Config
}

func NewExplanationService(cfg *config.Config) (ExplanationService, error) {
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. ExplanationService will be non-functional.")
		return &explanationService{cfg: cfg, client: nil}, nil
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	model := client.GenerativeModel("gemini-1.5-flash")
	return &explanationService{client: model, cfg: cfg}, nil
}

func (s *explanationService) ExplainMistake(question *model.Question, selectedOptionID uint) (string, error) {
	if s.client == nil {
		return "", nil
	}

	correct := question.CorrectOption()
	if correct == nil {
		return "", fmt.Errorf("question %d has no correct option", question.ID)
	}
	var selectedText string
	for _, o := range question.Options {
		if o.ID == selectedOptionID {
			selectedText = o.Text
			break
		}
	}

	var sb strings.Builder
	sb.WriteString("You are a tutor reviewing a multiple-choice exam with a student.\n")
	sb.WriteString("Explain in at most three sentences why the chosen answer is wrong and why the correct one is right.\n\n")
	sb.WriteString("Question: " + question.Text + "\n")
	sb.WriteString("Options:\n")
	for _, o := range question.Options {
		sb.WriteString("- " + o.Text + "\n")
	}
	sb.WriteString("Student chose: " + selectedText + "\n")
	sb.WriteString("Correct answer: " + correct.Text + "\n")

	ctx := context.Background()
	resp, err := s.client.GenerateContent(ctx, genai.Text(sb.String()))
	if err != nil {
		return "", fmt.Errorf("generating explanation: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from model")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return strings.TrimSpace(out.String()), nil
}
