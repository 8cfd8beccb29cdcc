package ai

import (
	"context"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultMaxTokens   = 150
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

var (
	ErrEmptyResponse = errors.New("model returned empty response")
	ErrMalformed     = errors.New("model returned malformed payload")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling задает параметры генерации.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultSampling возвращает параметры по умолчанию: 150 токенов, 0.7, 0.9.
func DefaultSampling() Sampling {
	return Sampling{MaxTokens: defaultMaxTokens, Temperature: defaultTemperature, TopP: defaultTopP}
}

func (s Sampling) withDefaults() Sampling {
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if s.Temperature <= 0 {
		s.Temperature = defaultTemperature
	}
	if s.TopP <= 0 || s.TopP > 1 {
		s.TopP = defaultTopP
	}
	return s
}

type ChatRequest struct {
	Model    string
	Messages []Message
	Sampling Sampling
}

// Client выполняет один запрос к модели и возвращает сгенерированный текст.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// StatusError означает, что провайдер ответил не-2xx статусом.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
