package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/stackapp/backend/internal/advice"
)

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

func newTestEcho() *echo.Echo {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	e := echo.New()
	e.Validator = &testValidator{v: v}
	return e
}

type scriptedInvoker struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (s *scriptedInvoker) Invoke(context.Context, advice.BackendDescriptor, advice.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

func newTestHandler(t *testing.T, invoker advice.Invoker) *AdviceHandler {
	t.Helper()

	registry, err := advice.NewRegistry(advice.DefaultDescriptors(advice.DefaultOptions{}))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	synth := advice.NewSynthesizer(registry, advice.NewGate("", "", nil), invoker, logger)
	return NewAdviceHandler(synth)
}

func newAdviceRouter(h *AdviceHandler) *echo.Echo {
	e := newTestEcho()
	e.GET("/agents", h.ListAgents)
	e.POST("/stack-master/chat", h.Chat)
	e.POST("/stack-master/analyze-stack", h.AnalyzeStack)
	e.POST("/agents/:agent/chat", h.AgentChat)
	e.POST("/investment/advice", h.Shortcut(advice.RoleExpertInvestor, "advice"))
	e.POST("/premium/finrobot-agents", h.PremiumAgents)
	e.POST("/premium/advanced-analysis", h.AdvancedAnalysis)
	e.POST("/premium/agents/:agent/chat", h.PremiumAgentChat)
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// TestChatLive проверяет ответ Stack Master с живой модели.
func TestChatLive(t *testing.T) {
	invoker := &scriptedInvoker{text: "Keep your credit utilization low and pay on time."}
	e := newAdviceRouter(newTestHandler(t, invoker))

	rec := postJSON(e, "/stack-master/chat", `{"user_id":"u1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "credit", resp.AdviceType)
	assert.Equal(t, "Keep your credit utilization low and pay on time.", resp.Response)
	assert.Len(t, resp.ActionableSteps, 3)
	assert.NotEmpty(t, resp.MotivationalMessage)
	assert.Equal(t, 1, invoker.calls)
}

// TestChatFallbackShape проверяет, что fallback-ответ имеет ту же форму.
func TestChatFallbackShape(t *testing.T) {
	invoker := &scriptedInvoker{err: errors.New("connection refused")}
	e := newAdviceRouter(newTestHandler(t, invoker))

	rec := postJSON(e, "/stack-master/chat", `{"user_id":"u1","message":"Should I invest in stocks?","context":{"savings":300}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	assert.ElementsMatch(t, []string{"response", "advice_type", "actionable_steps", "motivational_message"}, keys)
	assert.Equal(t, "investment", body["advice_type"])
	assert.Contains(t, body["response"], "emergency fund to $500")
}

// TestChatValidation проверяет ошибки валидации тела запроса.
func TestChatValidation(t *testing.T) {
	invoker := &scriptedInvoker{text: "ok"}
	e := newAdviceRouter(newTestHandler(t, invoker))

	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "missing message", body: `{"user_id":"u1"}`, want: "message: required"},
		{name: "missing user", body: `{"message":"hi"}`, want: "user_id: required"},
		{name: "too long", body: `{"user_id":"u1","message":"` + strings.Repeat("a", 4001) + `"}`, want: "message: max=4000"},
		{name: "broken json", body: `{"user_id":`, want: "invalid payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(e, "/stack-master/chat", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decodeBody(t, rec)["error"])
		})
	}
	assert.Equal(t, 0, invoker.calls)
}

// TestAgentChat проверяет метку специалиста и неизвестного агента.
func TestAgentChat(t *testing.T) {
	invoker := &scriptedInvoker{text: "Diversify across index funds."}
	e := newAdviceRouter(newTestHandler(t, invoker))

	rec := postJSON(e, "/agents/expert-investor/chat", `{"user_id":"u1","message":"what now"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "[Expert Investor] Diversify across index funds.", body["response"])
	assert.Equal(t, "specialized", body["advice_type"])

	rec = postJSON(e, "/agents/astrologer/chat", `{"user_id":"u1","message":"what now"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestShortcut проверяет поля ответа ярлыка.
func TestShortcut(t *testing.T) {
	invoker := &scriptedInvoker{text: "Start with a broad ETF."}
	e := newAdviceRouter(newTestHandler(t, invoker))

	rec := postJSON(e, "/investment/advice", `{"user_id":"u1","message":"I have $200"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "[Expert Investor] Start with a broad ETF.", body["advice"])
	assert.Equal(t, "free", body["tier"])
	assert.Equal(t, "microsoft/DialoGPT-medium", body["ai_model"])
	assert.Equal(t, "Expert Investor", body["agent_type"])
	assert.Equal(t, "specialized", body["advice_type"])
}

// TestAnalyzeStack проверяет сборку контекста из структурированных полей.
func TestAnalyzeStack(t *testing.T) {
	invoker := &scriptedInvoker{err: errors.New("down")}
	e := newAdviceRouter(newTestHandler(t, invoker))

	rec := postJSON(e, "/stack-master/analyze-stack", `{"user_id":"u1","current_savings":750,"credit_score":640}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StackAnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.Contains(t, resp.Analysis, "get you to $1000")

	rec = postJSON(e, "/stack-master/analyze-stack", `{"user_id":"u1","credit_score":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestStackContext проверяет, что пустые поля не попадают в контекст.
func TestStackContext(t *testing.T) {
	income := 4000.0
	score := 700
	got := stackContext(StackAnalysisRequest{CurrentIncome: &income, CreditScore: &score})

	want := map[string]any{"income": 4000.0, "credit_score": 700, "risk_tolerance": "moderate"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected context (-want +got):\n%s", diff)
	}
}

// TestPremiumGate проверяет 402 без оплаты и доступ с оплатой.
func TestPremiumGate(t *testing.T) {
	invoker := &scriptedInvoker{text: "Markets look volatile."}
	e := newAdviceRouter(newTestHandler(t, invoker))

	paths := []string{"/premium/finrobot-agents", "/premium/advanced-analysis", "/premium/agents/accountant/chat"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := postJSON(e, path, `{"user_id":"u1","message":"go","subscription_tier":"premium","payment_verified":false}`)
			require.Equal(t, http.StatusPaymentRequired, rec.Code)

			var resp PaymentRequiredResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "payment_required", resp.Error)
			assert.Equal(t, advice.DefaultUpgradeURL, resp.UpgradeURL)
			assert.NotEmpty(t, resp.Features)
			assert.NotEmpty(t, resp.Message)
		})
	}
	assert.Equal(t, 0, invoker.calls)

	rec := postJSON(e, "/premium/advanced-analysis", `{"user_id":"u1","subscription_tier":"premium","payment_verified":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "[Market Analyst] Markets look volatile.", body["analysis"])
	assert.Equal(t, "premium", body["subscription_tier"])
	assert.Equal(t, true, body["payment_verified"])
	assert.Equal(t, "beta", body["tier"])

	rec = postJSON(e, "/premium/finrobot-agents", `{"user_id":"u1","payment_verified":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var agents PremiumAgentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	assert.Len(t, agents.AvailableAgents, 4)
	assert.Equal(t, "beta", agents.SubscriptionTier)
	assert.True(t, agents.FeaturesUnlocked)
}

// TestListAgents проверяет каталог агентов и ярлыков.
func TestListAgents(t *testing.T) {
	e := newAdviceRouter(newTestHandler(t, &scriptedInvoker{}))

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AgentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Agents, 5)
	assert.Equal(t, "stack-master", resp.Agents[0].ID)
	assert.Equal(t, "/stack-master/chat", resp.Agents[0].Endpoint)
	assert.Equal(t, "/agents/financial-analyst/chat", resp.Agents[1].Endpoint)
	assert.Equal(t, "free", resp.Agents[1].Tier)
	assert.Len(t, resp.Shortcuts, 4)
}

// TestWriteAdviceError проверяет коды ответов для каждого типа ошибки.
func TestWriteAdviceError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "validation", err: &advice.ValidationError{Field: "message", Message: "required"}, status: http.StatusBadRequest},
		{name: "unknown role", err: advice.ErrUnknownRole, status: http.StatusNotFound},
		{name: "payment", err: advice.NewGate("", "", nil).Rejection(advice.RoleCoach), status: http.StatusPaymentRequired},
		{name: "internal", err: &advice.InternalError{Err: errors.New("panic")}, status: http.StatusInternalServerError},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			require.NoError(t, writeAdviceError(c, tc.err))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
