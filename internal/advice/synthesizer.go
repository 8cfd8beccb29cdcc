package advice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoker выполняет ровно один вызов модели по описанию бэкенда.
type Invoker interface {
	Invoke(ctx context.Context, backend BackendDescriptor, prompt Prompt) (string, error)
}

// Observer получает итог каждого запроса: метрики, аудит, уведомления.
// Реализации должны быть безопасны для конкурентного вызова.
type Observer interface {
	ObserveAdvice(ctx context.Context, in Input, result Result)
	ObserveRejection(ctx context.Context, in Input, err error)
}

type Synthesizer struct {
	registry  *Registry
	gate      *Gate
	invoker   Invoker
	observers []Observer
	logger    *slog.Logger
}

// NewSynthesizer собирает конвейер советов. invoker может быть nil: тогда
// все ответы идут из Content Bank.
func NewSynthesizer(registry *Registry, gate *Gate, invoker Invoker, logger *slog.Logger, observers ...Observer) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = NewGate("", "", nil)
	}

	return &Synthesizer{
		registry:  registry,
		gate:      gate,
		invoker:   invoker,
		observers: observers,
		logger:    logger,
	}
}

// Registry возвращает реестр бэкендов.
func (s *Synthesizer) Registry() *Registry {
	return s.registry
}

// Gate возвращает гейт подписки.
func (s *Synthesizer) Gate() *Gate {
	return s.gate
}

// Advise проводит запрос через гейт, классификацию, вызов модели и fallback.
// Ошибки: *ValidationError, ErrUnknownRole, *PaymentRequiredError, *InternalError.
// Сбой модели наружу не выходит.
func (s *Synthesizer) Advise(ctx context.Context, in Input) (result Result, err error) {
	started := time.Now()
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{}
			err = &InternalError{Err: fmt.Errorf("panic: %v", recovered)}
			s.logger.Error("advice pipeline panic",
				slog.String("request_id", in.RequestID),
				slog.String("role", string(in.Role)),
				slog.Any("panic", recovered),
			)
		}
	}()

	if err := validate(in); err != nil {
		return Result{}, err
	}

	backend, err := s.registry.Lookup(in.Role, in.Tier)
	if err != nil {
		return Result{}, err
	}

	if err := s.gate.Authorize(backend, in.Tier, in.Claim); err != nil {
		for _, o := range s.observers {
			o.ObserveRejection(ctx, in, err)
		}
		return Result{}, err
	}

	inputCategory := Classify(in.Request.Message)
	result = Result{
		RequestID:     in.RequestID,
		Backend:       backend,
		InputCategory: inputCategory,
	}

	text, failure := s.invoke(ctx, backend, in, inputCategory)
	if failure != nil {
		result.Source = SourceFallback
		result.Failure = failure
		result.Response = s.fallback(in, inputCategory)

		s.logger.Warn("advice fallback used",
			slog.String("request_id", in.RequestID),
			slog.String("role", string(in.Role)),
			slog.String("provider", backend.Provider),
			slog.String("model", backend.Model),
			slog.String("reason", string(failure.Reason)),
		)
	} else {
		result.Source = SourceLive
		result.Response = s.format(in.Role, text)

		s.logger.Info("advice generated",
			slog.String("request_id", in.RequestID),
			slog.String("role", string(in.Role)),
			slog.String("provider", backend.Provider),
			slog.String("model", backend.Model),
			slog.String("category", string(result.Response.Category)),
		)
	}
	result.Latency = time.Since(started)

	for _, o := range s.observers {
		o.ObserveAdvice(ctx, in, result)
	}

	return result, nil
}

func validate(in Input) error {
	if _, ok := roleLabels[in.Role]; !ok {
		return ErrUnknownRole
	}
	if strings.TrimSpace(in.Request.Message) == "" {
		return &ValidationError{Field: "message", Message: "must not be empty"}
	}
	return nil
}

// Промпт собирается только перед реальным вызовом: контекст, который не
// кодируется в JSON, уводит запрос в fallback, а не в ошибку.
func (s *Synthesizer) invoke(ctx context.Context, backend BackendDescriptor, in Input, focus Category) (string, *InvocationFailure) {
	if s.invoker == nil || backend.Kind == KindRuleBased {
		return "", &InvocationFailure{Provider: backend.Provider, Model: backend.Model, Reason: ReasonNotConfigured}
	}

	prompt, err := BuildPrompt(in.Role, focus, in.Request)
	if err != nil {
		return "", &InvocationFailure{Provider: backend.Provider, Model: backend.Model, Reason: ReasonMalformed, Err: err}
	}

	text, err := s.invoker.Invoke(ctx, backend, prompt)
	if err != nil {
		var failure *InvocationFailure
		if errors.As(err, &failure) {
			return "", failure
		}
		return "", &InvocationFailure{Provider: backend.Provider, Model: backend.Model, Reason: ReasonTransport, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &InvocationFailure{Provider: backend.Provider, Model: backend.Model, Reason: ReasonEmpty}
	}
	return text, nil
}

// Живой ответ коуча тегируется по сгенерированному тексту, а не по вопросу.
func (s *Synthesizer) format(role Role, text string) Response {
	category := CategorySpecialized
	if role.IsSpecialist() {
		text = labeled(role, text)
	} else {
		category = Classify(text)
	}

	return Response{
		Text:                text,
		Category:            category,
		ActionableSteps:     Steps(category),
		MotivationalMessage: Motivation(category),
	}
}

func (s *Synthesizer) fallback(in Input, inputCategory Category) Response {
	category := inputCategory
	if in.Role.IsSpecialist() {
		category = CategorySpecialized
	}

	text, steps, motivation := Fallback(category, in.Request.Context)
	if in.Role.IsSpecialist() {
		text = labeled(in.Role, text)
	}

	return Response{
		Text:                text,
		Category:            category,
		ActionableSteps:     steps,
		MotivationalMessage: motivation,
	}
}

func labeled(role Role, text string) string {
	return fmt.Sprintf("[%s] %s", role.Label(), text)
}
