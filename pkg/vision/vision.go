// Package vision analyzes captured camera frames with the Gemini HTTP API.
// Realtime frame streaming lives in the session engine; this is the one-shot
// "what am I looking at" path.
package vision

import (
	"context"

	"google.golang.org/genai"

	"github.com/aura-voice/aura/pkg/core"
)

// DefaultModel handles one-shot image analysis.
const DefaultModel = "gemini-2.0-flash"

// DefaultPrompt is used when the user did not ask anything specific.
const DefaultPrompt = "Describe o que aparece nesta imagem de forma breve e útil."

// Analyzer wraps the generateContent client.
type Analyzer struct {
	client *genai.Client
	model  string
}

// NewAnalyzer builds an Analyzer with the given API key.
func NewAnalyzer(ctx context.Context, apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, core.NewCredentialMissingError()
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewFetchError("vision client", err)
	}
	return &Analyzer{client: client, model: model}, nil
}

// AnalyzeImage sends one JPEG frame with a prompt and returns the model's
// text description.
func (a *Analyzer) AnalyzeImage(ctx context.Context, jpeg []byte, prompt string) (string, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: jpeg}},
			{Text: prompt},
		},
	}}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", core.NewFetchError("vision analysis", err)
	}
	return resp.Text(), nil
}
