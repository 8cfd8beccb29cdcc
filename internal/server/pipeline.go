package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/ai"
	"example.com/stackapp/backend/internal/config"
)

// BuildPipeline собирает реестр, гейт, клиентов провайдеров и синтезатор
// советов. Провайдер без ключа не регистрируется: его дескрипторы уходят
// в fallback с причиной not_configured.
func BuildPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, observers ...advice.Observer) (*advice.Synthesizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	descriptors, err := loadDescriptors(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := advice.NewRegistry(descriptors)
	if err != nil {
		return nil, fmt.Errorf("build backend registry: %w", err)
	}

	clients, err := buildClients(ctx, cfg.Providers)
	if err != nil {
		return nil, err
	}

	sampling := ai.Sampling{
		MaxTokens:   cfg.AI.MaxNewTokens,
		Temperature: cfg.AI.Temperature,
		TopP:        cfg.AI.TopP,
	}
	invoker := ai.NewInvoker(clients, sampling, cfg.AI.Timeout)
	gate := advice.NewGate(cfg.Premium.Message, cfg.Premium.UpgradeURL, cfg.Premium.Features)

	logger.Info("advice pipeline ready",
		slog.String("mode", cfg.AI.Mode),
		slog.Int("backends", len(registry.Descriptors())),
		slog.Any("providers", invoker.Providers()),
	)

	return advice.NewSynthesizer(registry, gate, invoker, logger, observers...), nil
}

func loadDescriptors(cfg config.Config) ([]advice.BackendDescriptor, error) {
	if cfg.AI.BackendsFile != "" && !cfg.AI.RuleBasedOnly() {
		descriptors, err := advice.LoadDescriptors(cfg.AI.BackendsFile)
		if err != nil {
			return nil, fmt.Errorf("load AI_BACKENDS_FILE: %w", err)
		}
		return descriptors, nil
	}

	hostedModels := make(map[advice.Role]string, len(cfg.AI.HostedModels))
	for name, model := range cfg.AI.HostedModels {
		if role, ok := advice.ParseRole(name); ok {
			hostedModels[role] = model
		}
	}

	return advice.DefaultDescriptors(advice.DefaultOptions{
		HostedModels:  hostedModels,
		AgentProvider: cfg.AI.AgentProvider,
		AgentModel:    cfg.AI.AgentModel,
		RuleBasedOnly: cfg.AI.RuleBasedOnly(),
	}), nil
}

func buildClients(ctx context.Context, cfg config.ProvidersConfig) (map[string]ai.Client, error) {
	httpClient := &http.Client{}

	clients := map[string]ai.Client{
		advice.ProviderHFInference: ai.NewHFInferenceClient(cfg.HFToken, cfg.HFInferenceURL, httpClient),
	}

	if cfg.OpenAIAPIKey != "" {
		clients[advice.ProviderOpenAI] = ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient)
	}

	// Groq совместим с chat completions, поэтому идет через тот же SDK.
	if cfg.GroqAPIKey != "" {
		clients[advice.ProviderGroq] = ai.NewOpenAIClient(cfg.GroqAPIKey, cfg.GroqBaseURL, httpClient)
	}

	if cfg.AnthropicAPIKey != "" {
		clients[advice.ProviderAnthropic] = ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicURL, httpClient)
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		clients[advice.ProviderGemini] = gemini
	}

	return clients, nil
}
