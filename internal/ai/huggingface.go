package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultHFInferenceURL = "https://api-inference.huggingface.co/models"

// HFInferenceClient calls the Hugging Face hosted inference API.
type HFInferenceClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHFInferenceClient создает клиент Hugging Face. Токен необязателен для публичных моделей.
func NewHFInferenceClient(token, baseURL string, httpClient *http.Client) *HFInferenceClient {
	if baseURL == "" {
		baseURL = DefaultHFInferenceURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &HFInferenceClient{
		token:      strings.TrimSpace(token),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Chat склеивает сообщения в один промпт и возвращает сгенерированное продолжение.
func (c *HFInferenceClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	parts := make([]string, 0, len(req.Messages))
	for _, message := range req.Messages {
		if text := strings.TrimSpace(message.Content); text != "" {
			parts = append(parts, text)
		}
	}
	inputs := strings.Join(parts, "\n\n")

	sampling := req.Sampling.withDefaults()
	payload, err := json.Marshal(hfRequest{
		Inputs: inputs,
		Parameters: hfParameters{
			MaxNewTokens:   sampling.MaxTokens,
			Temperature:    sampling.Temperature,
			TopP:           sampling.TopP,
			DoSample:       true,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, req.Model)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := strings.TrimSpace(string(body))
		var apiErr hfError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return "", &StatusError{Provider: "hf-inference", StatusCode: response.StatusCode, Message: message}
	}

	text, err := parseHFGeneration(body)
	if err != nil {
		return "", err
	}

	// Некоторые модели игнорируют return_full_text и повторяют промпт.
	text = strings.TrimSpace(strings.TrimPrefix(text, inputs))
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

func parseHFGeneration(body []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", ErrEmptyResponse
		}
		return list[0].GeneratedText, nil
	}

	var single hfGeneration
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return single.GeneratedText, nil
}
