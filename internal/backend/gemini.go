package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiAdapter generates text through the Gemini API.
type GeminiAdapter struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

// NewGeminiAdapter creates a Gemini adapter. An API key is required.
func NewGeminiAdapter(cfg Config) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini backend requires an API key (GEMINI_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiAdapter{
		client:       client,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Name implements Generator.
func (g *GeminiAdapter) Name() string { return "gemini" }

// Generate implements Generator. JSON tiers request an application/json
// response.
func (g *GeminiAdapter) Generate(ctx context.Context, req Request) (string, error) {
	return call(ctx, g.Name(), req, func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), g.contentConfig(req))
		if err != nil {
			return "", fmt.Errorf("GenAI generate failed: %w", err)
		}

		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("GenAI returned no text")
		}
		return text, nil
	})
}

func (g *GeminiAdapter) contentConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Format == "json" {
		cfg.ResponseMIMEType = "application/json"
	}
	if g.systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.systemPrompt, genai.RoleUser)
	}
	return cfg
}
