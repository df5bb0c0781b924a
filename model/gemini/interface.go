package gemini

import (
	"context"
	"net/http"

	"google.golang.org/genai"
)

// Models is the subset of *genai.Models the adapter calls. It exists so tests
// can substitute a fake.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ClientFactory returns the Models service authorized with credential.
type ClientFactory func(ctx context.Context, credential string) (Models, error)

// modelsWrapper implements Models on top of a real client.
type modelsWrapper struct {
	models *genai.Models
}

// GenerateContent implements Models.GenerateContent.
func (m *modelsWrapper) GenerateContent(ctx context.Context, model string, contents []*genai.Content,
	config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.models.GenerateContent(ctx, model, contents, config)
}

// NewClientFactory builds clients against the Gemini API backend.
func NewClientFactory(baseURL string, httpClient *http.Client) ClientFactory {
	return func(ctx context.Context, credential string) (Models, error) {
		cfg := &genai.ClientConfig{
			APIKey:     credential,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
		}

		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}

		return &modelsWrapper{models: client.Models}, nil
	}
}
