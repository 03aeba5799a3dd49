// Package analysis asks a generative-language model to review text captured
// from screen-share frames for apparent errors.
package analysis

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

const analysisPrompt = "You are an expert programmer and error analyst. " +
	"Review this console/code text, identify possible issues or errors, and " +
	"suggest concise, clear fixes. Respond in Markdown format with headings, " +
	"bullet points, and code blocks when relevant.\n\nText:\n%s"

// Analyzer generates error analyses using the Gemini API.
type Analyzer struct {
	client *genai.Client
	model  string
}

// New creates an analyzer backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Analyzer{
		client: client,
		model:  model,
	}, nil
}

// AnalyzeErrors asks the model to review the extracted text and returns its
// free-text analysis.
func (a *Analyzer) AnalyzeErrors(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(analysisPrompt, text)

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini analysis failed: %w", err)
	}

	analysis := resp.Text()
	if analysis == "" {
		return "", fmt.Errorf("gemini returned no analysis")
	}
	return analysis, nil
}
