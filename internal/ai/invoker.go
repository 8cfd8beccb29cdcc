package ai

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"example.com/stackapp/backend/internal/advice"
)

const defaultTimeout = 20 * time.Second

// Invoker выбирает стратегию вызова по invocation kind и переводит любые
// ошибки провайдеров в *advice.InvocationFailure.
type Invoker struct {
	clients  map[string]Client
	sampling Sampling
	timeout  time.Duration
}

// NewInvoker создает исполнитель с набором клиентов по имени провайдера.
func NewInvoker(clients map[string]Client, sampling Sampling, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	registered := make(map[string]Client, len(clients))
	for provider, client := range clients {
		if client != nil {
			registered[strings.ToLower(provider)] = client
		}
	}

	return &Invoker{
		clients:  registered,
		sampling: sampling.withDefaults(),
		timeout:  timeout,
	}
}

// Providers возвращает имена зарегистрированных провайдеров.
func (i *Invoker) Providers() []string {
	out := make([]string, 0, len(i.clients))
	for provider := range i.clients {
		out = append(out, provider)
	}
	return out
}

// Invoke делает ровно один вызов модели с ограничением по времени. Повторов нет.
func (i *Invoker) Invoke(ctx context.Context, backend advice.BackendDescriptor, prompt advice.Prompt) (string, error) {
	if backend.Kind == advice.KindRuleBased {
		return "", i.failure(backend, advice.ReasonNotConfigured, nil)
	}

	client, ok := i.clients[strings.ToLower(backend.Provider)]
	if !ok {
		return "", i.failure(backend, advice.ReasonNotConfigured, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch backend.Kind {
	case advice.KindLocalAgent:
		session := NewAgentSession(client, backend.Model, prompt.System, i.sampling)
		text, err = session.Ask(callCtx, prompt.User)
	case advice.KindHostedInference:
		text, err = client.Chat(callCtx, ChatRequest{
			Model:    backend.Model,
			Messages: []Message{{Role: RoleUser, Content: prompt.Flatten()}},
			Sampling: i.sampling,
		})
	default:
		return "", i.failure(backend, advice.ReasonNotConfigured, nil)
	}

	if err != nil {
		return "", i.classify(callCtx, backend, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", i.failure(backend, advice.ReasonEmpty, nil)
	}
	return text, nil
}

func (i *Invoker) classify(ctx context.Context, backend advice.BackendDescriptor, err error) error {
	var statusErr *StatusError
	var netErr net.Error

	switch {
	case errors.As(err, &statusErr):
		failure := i.failure(backend, advice.ReasonStatus, err)
		failure.StatusCode = statusErr.StatusCode
		return failure
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return i.failure(backend, advice.ReasonTimeout, err)
	case errors.Is(err, context.Canceled):
		return i.failure(backend, advice.ReasonCanceled, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return i.failure(backend, advice.ReasonTimeout, err)
	case errors.Is(err, ErrEmptyResponse):
		return i.failure(backend, advice.ReasonEmpty, err)
	case errors.Is(err, ErrMalformed):
		return i.failure(backend, advice.ReasonMalformed, err)
	default:
		return i.failure(backend, advice.ReasonTransport, err)
	}
}

func (i *Invoker) failure(backend advice.BackendDescriptor, reason advice.FailureReason, err error) *advice.InvocationFailure {
	return &advice.InvocationFailure{
		Provider: backend.Provider,
		Model:    backend.Model,
		Reason:   reason,
		Err:      err,
	}
}
