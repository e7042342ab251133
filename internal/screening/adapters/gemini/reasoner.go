// Package gemini implements the Reasoner port over Google's Gemini API.
//
// The adapter is deliberately thin: the risk stage owns the prompt, the
// parser owns the narrative, and this package only moves text across the
// wire. Reliability policy (timeouts, degradation) lives with the caller.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-2.5-flash-preview-09-2025"

// systemInstruction fixes the analyst role. The per-call prompt carries
// the transaction context and the output format.
const systemInstruction = `You are a fraud risk and regulatory compliance analyst evaluating financial transactions.
Given a transaction, its customer profile, and preliminary rule-based findings, you:
- validate or challenge the identified risk factors,
- assign a fraud risk score from 0 to 100 and a risk level (Low, Medium, High),
- explain the score in clear, regulator-ready language.
Always state the numeric risk score explicitly, for example "Risk Score: 85".`

// Reasoner calls Gemini to produce narrative risk assessments.
type Reasoner struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// Option configures the Reasoner.
type Option func(*Reasoner)

// WithLogger sets the logger used for response diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reasoner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Gemini-backed reasoner. modelName falls back to
// DefaultModel when empty.
func New(ctx context.Context, apiKey, modelName string, opts ...Option) (*Reasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}

	r := &Reasoner{
		client: client,
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run submits one prompt and returns the narrative text.
func (r *Reasoner) Run(ctx context.Context, prompt string) (string, error) {
	resp, err := r.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return "", err
	}

	r.logger.DebugContext(ctx, "gemini narrative received", "length", len(text))
	return text, nil
}

// Close releases the underlying client.
func (r *Reasoner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// firstText extracts the first text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("empty gemini response")
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no content parts")
	}

	var b strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response has no text parts")
	}
	return b.String(), nil
}
