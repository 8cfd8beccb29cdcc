package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls the Google Generative Language API (Gemini).
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient создает клиент Gemini.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Chat отправляет системную инструкцию отдельно, остальные сообщения как содержимое.
func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	systemParts := make([]string, 0)
	contents := make([]*genai.Content, 0, len(req.Messages))

	for _, message := range req.Messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch message.Role {
		case RoleSystem:
			systemParts = append(systemParts, text)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	if len(contents) == 0 {
		return "", errors.New("gemini request has no user content")
	}

	sampling := req.Sampling.withDefaults()
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(sampling.Temperature)),
		TopP:            genai.Ptr(float32(sampling.TopP)),
		MaxOutputTokens: int32(sampling.MaxTokens),
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}

	response, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return "", err
	}

	text := response.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
