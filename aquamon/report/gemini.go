package report

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// Gemini generates reports with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds a client. baseURL is only needed to point at a proxy.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return "", errors.Wrap(err, "Gemini generate failed")
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("no candidates returned")
	}
	return text, nil
}
