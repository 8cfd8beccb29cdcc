package advice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoker struct {
	mu      sync.Mutex
	calls   int
	prompts []Prompt
	text    string
	err     error
	panics  bool
}

func (s *stubInvoker) Invoke(_ context.Context, _ BackendDescriptor, prompt Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.panics {
		panic("boom")
	}
	return s.text, s.err
}

type recordingObserver struct {
	mu         sync.Mutex
	results    []Result
	rejections []error
}

func (o *recordingObserver) ObserveAdvice(_ context.Context, _ Input, result Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) ObserveRejection(_ context.Context, _ Input, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejections = append(o.rejections, err)
}

func newTestSynthesizer(t *testing.T, invoker Invoker, observers ...Observer) *Synthesizer {
	t.Helper()

	registry, err := NewRegistry(DefaultDescriptors(DefaultOptions{}))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSynthesizer(registry, NewGate("", "", nil), invoker, logger, observers...)
}

// TestAdviseFallbackInvestmentScenario проверяет сквозной сценарий без бэкенда.
func TestAdviseFallbackInvestmentScenario(t *testing.T) {
	synth := newTestSynthesizer(t, nil)

	result, err := synth.Advise(context.Background(), Input{
		Role: RoleCoach,
		Request: Request{
			UserID:  "u-1",
			Message: "I want to start investing $50/month",
			Context: map[string]any{"savings": float64(300)},
		},
	})
	require.NoError(t, err)

	want := Response{
		Text:     narratives[CategoryInvestment][0] + suffixEmergencyFund,
		Category: CategoryInvestment,
		ActionableSteps: []string{
			"Start with $25/month in an index fund",
			"Research low-cost ETFs like VTI or SPY",
			"Set up automatic transfers to your investment account",
		},
		MotivationalMessage: "Your future self will thank you for starting today!",
	}
	if diff := cmp.Diff(want, result.Response); diff != "" {
		t.Fatalf("unexpected response (-want +got):\n%s", diff)
	}
	assert.Equal(t, SourceFallback, result.Source)
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonNotConfigured, result.Failure.Reason)
	assert.NotEmpty(t, result.RequestID)
}

// TestAdviseLiveCoachClassifiesOutput проверяет тегирование по сгенерированному тексту.
func TestAdviseLiveCoachClassifiesOutput(t *testing.T) {
	invoker := &stubInvoker{text: "  Pay down that loan before anything else.  "}
	synth := newTestSynthesizer(t, invoker)

	result, err := synth.Advise(context.Background(), Input{
		Role:    RoleCoach,
		Request: Request{Message: "what should I do with my cash?"},
	})
	require.NoError(t, err)

	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, CategorySavings, result.InputCategory)
	assert.Equal(t, CategoryCredit, result.Response.Category)
	assert.Equal(t, "Pay down that loan before anything else.", result.Response.Text)
	assert.Equal(t, Steps(CategoryCredit), result.Response.ActionableSteps)

	require.Len(t, invoker.prompts, 1)
	assert.Contains(t, invoker.prompts[0].User, "Focus area: savings")
	assert.Contains(t, invoker.prompts[0].System, "Stack Master")
}

// TestAdviseLiveSpecialistIsLabeled проверяет метку роли и категорию specialized.
func TestAdviseLiveSpecialistIsLabeled(t *testing.T) {
	synth := newTestSynthesizer(t, &stubInvoker{text: "Diversify across sectors."})

	result, err := synth.Advise(context.Background(), Input{
		Role:    RoleMarketAnalyst,
		Request: Request{Message: "How is the market looking?"},
	})
	require.NoError(t, err)

	assert.Equal(t, "[Market Analyst] Diversify across sectors.", result.Response.Text)
	assert.Equal(t, CategorySpecialized, result.Response.Category)
	assert.Equal(t, "Stack your bread, stack your future!", result.Response.MotivationalMessage)
	assert.Len(t, result.Response.ActionableSteps, 3)
}

// TestAdviseInvocationFailureFallsBack проверяет, что сбой модели не выходит наружу.
func TestAdviseInvocationFailureFallsBack(t *testing.T) {
	failures := []error{
		&InvocationFailure{Provider: "hf-inference", Model: "m", Reason: ReasonStatus, StatusCode: 503},
		&InvocationFailure{Provider: "hf-inference", Model: "m", Reason: ReasonTimeout, Err: context.DeadlineExceeded},
		errors.New("connection reset by peer"),
	}

	for _, failure := range failures {
		invoker := &stubInvoker{err: failure}
		synth := newTestSynthesizer(t, invoker)

		result, err := synth.Advise(context.Background(), Input{
			Role:    RoleCoach,
			Request: Request{Message: "how do I fix my credit score", Context: map[string]any{"savings": 1200}},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, invoker.calls, "no retries expected")
		assert.Equal(t, SourceFallback, result.Source)
		assert.Equal(t, CategoryCredit, result.Response.Category)
		assert.True(t, strings.HasSuffix(result.Response.Text, suffixStartInvest))
		require.NotNil(t, result.Failure)
	}
}

// TestAdviseEmptyOutputFallsBack проверяет обработку пустого ответа модели.
func TestAdviseEmptyOutputFallsBack(t *testing.T) {
	synth := newTestSynthesizer(t, &stubInvoker{text: "   "})

	result, err := synth.Advise(context.Background(), Input{
		Role:    RoleAccountant,
		Request: Request{Message: "review my budget"},
	})
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, ReasonEmpty, result.Failure.Reason)
	assert.Equal(t, CategorySpecialized, result.Response.Category)
	assert.True(t, strings.HasPrefix(result.Response.Text, "[Accountant] "))
}

// TestAdvisePremiumGate проверяет, что без оплаты премиум-запрос не доходит до модели.
func TestAdvisePremiumGate(t *testing.T) {
	tiers := []string{"", "free", "beta", "premium", "enterprise", "platinum"}

	for _, role := range Roles() {
		for _, tier := range tiers {
			invoker := &stubInvoker{text: "should never be used"}
			observer := &recordingObserver{}
			synth := newTestSynthesizer(t, invoker, observer)

			_, err := synth.Advise(context.Background(), Input{
				Role:    role,
				Tier:    PremiumTier(tier),
				Claim:   SubscriptionClaim{Tier: tier, PaymentVerified: false},
				Request: Request{Message: "invest my savings", Context: map[string]any{"savings": 50}},
			})

			var gateErr *PaymentRequiredError
			require.ErrorAs(t, err, &gateErr, "role %s tier %q", role, tier)
			assert.Equal(t, "payment_required", gateErr.Code)
			assert.NotEmpty(t, gateErr.UpgradeURL)
			assert.NotEmpty(t, gateErr.Features)
			assert.Zero(t, invoker.calls)
			assert.Len(t, observer.rejections, 1)
			assert.Empty(t, observer.results)
		}
	}
}

// TestAdvisePremiumVerifiedProceeds проверяет проход к модели при payment_verified.
func TestAdvisePremiumVerifiedProceeds(t *testing.T) {
	for _, role := range Roles() {
		invoker := &stubInvoker{text: "Buy broad index funds."}
		synth := newTestSynthesizer(t, invoker)

		result, err := synth.Advise(context.Background(), Input{
			Role:    role,
			Tier:    PremiumTier("premium"),
			Claim:   SubscriptionClaim{Tier: "premium", PaymentVerified: true},
			Request: Request{Message: "anything"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, invoker.calls)
		assert.Equal(t, KindLocalAgent, result.Backend.Kind)
	}
}

// TestAdviseValidation проверяет отказ до запуска конвейера.
func TestAdviseValidation(t *testing.T) {
	invoker := &stubInvoker{text: "x"}
	synth := newTestSynthesizer(t, invoker)

	_, err := synth.Advise(context.Background(), Input{Role: RoleCoach, Request: Request{Message: "  "}})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "message", validationErr.Field)

	_, err = synth.Advise(context.Background(), Input{Role: Role("oracle"), Request: Request{Message: "hi"}})
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Zero(t, invoker.calls)
}

// TestAdvisePanicBecomesInternalError проверяет перехват паники.
func TestAdvisePanicBecomesInternalError(t *testing.T) {
	synth := newTestSynthesizer(t, &stubInvoker{panics: true})

	result, err := synth.Advise(context.Background(), Input{Role: RoleCoach, Request: Request{Message: "hi"}})
	var internalErr *InternalError
	require.ErrorAs(t, err, &internalErr)
	assert.Empty(t, result.Response.Text)
}

// TestAdviseConcurrent проверяет параллельные запросы через общий синтезатор.
func TestAdviseConcurrent(t *testing.T) {
	observer := &recordingObserver{}
	synth := newTestSynthesizer(t, &stubInvoker{text: "Stack it up."}, observer)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := synth.Advise(context.Background(), Input{Role: RoleCoach, Request: Request{Message: "save money"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, observer.results, 20)
}

// TestBuildPromptIncludesContext проверяет сериализацию контекста в промпт.
func TestBuildPromptIncludesContext(t *testing.T) {
	prompt, err := BuildPrompt(RoleAccountant, CategorySavings, Request{
		Message: "Check my numbers",
		Context: map[string]any{"income": 4000, "savings": 250},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt.System, "Accountant")
	assert.Contains(t, prompt.User, "User message: Check my numbers")
	assert.Contains(t, prompt.User, "\"income\": 4000")
	assert.Contains(t, prompt.Flatten(), prompt.System)

	_, err = BuildPrompt(Role("oracle"), CategoryGeneral, Request{Message: "x"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

// TestAdviseUnencodableContext проверяет, что контекст без JSON-представления
// приводит к fallback, а не к ошибке.
func TestAdviseUnencodableContext(t *testing.T) {
	in := Input{
		Role: RoleCoach,
		Request: Request{
			UserID:  "u-1",
			Message: "How do I save more?",
			Context: map[string]any{"savings": math.Inf(1)},
		},
	}

	offline := newTestSynthesizer(t, nil)
	result, err := offline.Advise(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, narratives[CategorySavings][0], result.Response.Text)

	invoker := &stubInvoker{text: "never used"}
	live := newTestSynthesizer(t, invoker)
	in.Request.Context = map[string]any{"savings": math.NaN()}
	result, err = live.Advise(context.Background(), in)
	require.NoError(t, err)

	assert.Zero(t, invoker.calls)
	assert.Equal(t, SourceFallback, result.Source)
	require.NotNil(t, result.Failure)
	assert.Equal(t, ReasonMalformed, result.Failure.Reason)
	assert.Len(t, result.Response.ActionableSteps, 3)
}
