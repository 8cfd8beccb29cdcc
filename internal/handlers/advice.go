package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/stackapp/backend/internal/advice"
)

const (
	defaultAnalysisMessage         = "Analyze my financial stack and give me recommendations."
	defaultAdvancedAnalysisMessage = "Give me an advanced multi-factor market and portfolio analysis."
)

var agentDescriptions = map[advice.Role]string{
	advice.RoleCoach:            "Stack Master AI coach for everyday money questions",
	advice.RoleFinancialAnalyst: "Expert in financial analysis and credit planning",
	advice.RoleMarketAnalyst:    "Expert in market trends and stock analysis",
	advice.RoleExpertInvestor:   "Expert in investment advice and strategies",
	advice.RoleAccountant:       "Expert in budgeting and financial planning",
}

type shortcut struct {
	Task     string
	Endpoint string
	Role     advice.Role
	Field    string
}

var shortcuts = []shortcut{
	{Task: "Investment Advice", Endpoint: "/investment/advice", Role: advice.RoleExpertInvestor, Field: "advice"},
	{Task: "Credit Building Plan", Endpoint: "/credit/building-plan", Role: advice.RoleFinancialAnalyst, Field: "plan"},
	{Task: "Budget Analysis", Endpoint: "/budget/analysis", Role: advice.RoleAccountant, Field: "analysis"},
	{Task: "Market Analysis", Endpoint: "/market/analysis", Role: advice.RoleMarketAnalyst, Field: "analysis"},
}

type AdviceHandler struct {
	Synth *advice.Synthesizer
}

// NewAdviceHandler создает обработчик эндпоинтов советов.
func NewAdviceHandler(synth *advice.Synthesizer) *AdviceHandler {
	return &AdviceHandler{Synth: synth}
}

type ChatRequest struct {
	UserID  string         `json:"user_id" validate:"required"`
	Message string         `json:"message" validate:"required,max=4000"`
	Context map[string]any `json:"context"`
}

type PremiumChatRequest struct {
	ChatRequest
	SubscriptionTier string `json:"subscription_tier"`
	PaymentVerified  bool   `json:"payment_verified"`
}

type PremiumAccessRequest struct {
	UserID           string `json:"user_id" validate:"required"`
	SubscriptionTier string `json:"subscription_tier"`
	PaymentVerified  bool   `json:"payment_verified"`
}

type AdvancedAnalysisRequest struct {
	UserID           string         `json:"user_id" validate:"required"`
	Message          string         `json:"message" validate:"max=4000"`
	Context          map[string]any `json:"context"`
	SubscriptionTier string         `json:"subscription_tier"`
	PaymentVerified  bool           `json:"payment_verified"`
}

type StackAnalysisRequest struct {
	UserID          string   `json:"user_id" validate:"required"`
	Message         string   `json:"message" validate:"max=4000"`
	CurrentIncome   *float64 `json:"current_income" validate:"omitempty,gte=0"`
	CurrentSavings  *float64 `json:"current_savings" validate:"omitempty,gte=0"`
	MonthlyExpenses *float64 `json:"monthly_expenses" validate:"omitempty,gte=0"`
	CreditScore     *int     `json:"credit_score" validate:"omitempty,gte=300,lte=850"`
	InvestmentGoals []string `json:"investment_goals"`
	RiskTolerance   string   `json:"risk_tolerance" validate:"omitempty,oneof=conservative moderate aggressive"`
}

type ChatResponse struct {
	Response            string   `json:"response"`
	AdviceType          string   `json:"advice_type"`
	ActionableSteps     []string `json:"actionable_steps"`
	MotivationalMessage string   `json:"motivational_message"`
}

type StackAnalysisResponse struct {
	UserID              string   `json:"user_id"`
	Analysis            string   `json:"analysis"`
	AdviceType          string   `json:"advice_type"`
	ActionableSteps     []string `json:"actionable_steps"`
	MotivationalMessage string   `json:"motivational_message"`
}

type AgentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
	Provider    string `json:"provider"`
	Kind        string `json:"kind"`
	Tier        string `json:"tier"`
	Endpoint    string `json:"endpoint"`
}

type ShortcutResponse struct {
	Task     string `json:"task"`
	Endpoint string `json:"endpoint"`
	Agent    string `json:"agent"`
}

type AgentsResponse struct {
	Agents    []AgentResponse    `json:"agents"`
	Shortcuts []ShortcutResponse `json:"shortcuts"`
}

type PremiumAgentsResponse struct {
	Message          string          `json:"message"`
	AvailableAgents  []AgentResponse `json:"available_agents"`
	Features         []string        `json:"features"`
	SubscriptionTier string          `json:"subscription_tier"`
	PaymentVerified  bool            `json:"payment_verified"`
	FeaturesUnlocked bool            `json:"features_unlocked"`
}

// Chat отвечает от имени Stack Master.
func (h *AdviceHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	result, err := h.advise(c, advice.RoleCoach, advice.TierFree, advice.SubscriptionClaim{}, toAdviceRequest(req))
	if err != nil {
		return writeAdviceError(c, err)
	}

	return c.JSON(http.StatusOK, toChatResponse(result.Response))
}

// AgentChat отвечает от имени агента из пути /agents/:agent/chat.
func (h *AdviceHandler) AgentChat(c echo.Context) error {
	role, ok := advice.ParseRole(c.Param("agent"))
	if !ok {
		return notFound(c, "unknown agent")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	result, err := h.advise(c, role, advice.TierFree, advice.SubscriptionClaim{}, toAdviceRequest(req))
	if err != nil {
		return writeAdviceError(c, err)
	}

	return c.JSON(http.StatusOK, toChatResponse(result.Response))
}

// AnalyzeStack превращает структурированные поля в контекст и спрашивает Stack Master.
func (h *AdviceHandler) AnalyzeStack(c echo.Context) error {
	var req StackAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = defaultAnalysisMessage
	}

	result, err := h.advise(c, advice.RoleCoach, advice.TierFree, advice.SubscriptionClaim{}, advice.Request{
		UserID:  req.UserID,
		Message: message,
		Context: stackContext(req),
	})
	if err != nil {
		return writeAdviceError(c, err)
	}

	return c.JSON(http.StatusOK, StackAnalysisResponse{
		UserID:              req.UserID,
		Analysis:            result.Response.Text,
		AdviceType:          string(result.Response.Category),
		ActionableSteps:     result.Response.ActionableSteps,
		MotivationalMessage: result.Response.MotivationalMessage,
	})
}

// Shortcut возвращает обработчик, вызывающий фиксированного агента и
// кладущий текст в поле field.
func (h *AdviceHandler) Shortcut(role advice.Role, field string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ChatRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid payload")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, validationMessage(err))
		}

		result, err := h.advise(c, role, advice.TierFree, advice.SubscriptionClaim{}, toAdviceRequest(req))
		if err != nil {
			return writeAdviceError(c, err)
		}

		return c.JSON(http.StatusOK, shortcutBody(field, role, result))
	}
}

// ListAgents возвращает каталог агентов бесплатного тарифа и ярлыки.
func (h *AdviceHandler) ListAgents(c echo.Context) error {
	agents := make([]AgentResponse, 0, len(advice.Roles()))
	for _, role := range advice.Roles() {
		backend, err := h.Synth.Registry().Lookup(role, advice.TierFree)
		if err != nil {
			continue
		}
		agents = append(agents, toAgentResponse(backend, agentEndpoint(role, false)))
	}

	links := make([]ShortcutResponse, 0, len(shortcuts))
	for _, s := range shortcuts {
		links = append(links, ShortcutResponse{Task: s.Task, Endpoint: s.Endpoint, Agent: s.Role.Label()})
	}

	return c.JSON(http.StatusOK, AgentsResponse{Agents: agents, Shortcuts: links})
}

// PremiumAgents открывает список премиум-агентов после проверки оплаты.
func (h *AdviceHandler) PremiumAgents(c echo.Context) error {
	var req PremiumAccessRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	tier := advice.PremiumTier(req.SubscriptionTier)
	claim := advice.SubscriptionClaim{Tier: req.SubscriptionTier, PaymentVerified: req.PaymentVerified}
	gate := h.Synth.Gate()
	if err := gate.Authorize(advice.BackendDescriptor{Tier: tier}, tier, claim); err != nil {
		return writeAdviceError(c, err)
	}

	agents := make([]AgentResponse, 0, len(advice.Roles()))
	for _, role := range advice.Roles() {
		if !role.IsSpecialist() {
			continue
		}
		backend, err := h.Synth.Registry().Lookup(role, tier)
		if err != nil {
			continue
		}
		agents = append(agents, toAgentResponse(backend, agentEndpoint(role, true)))
	}

	return c.JSON(http.StatusOK, PremiumAgentsResponse{
		Message:          "Welcome to StackApp Premium agents",
		AvailableAgents:  agents,
		Features:         gate.Features(),
		SubscriptionTier: tier.String(),
		PaymentVerified:  req.PaymentVerified,
		FeaturesUnlocked: true,
	})
}

// AdvancedAnalysis запускает Market Analyst на премиум-тарифе.
func (h *AdviceHandler) AdvancedAnalysis(c echo.Context) error {
	var req AdvancedAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = defaultAdvancedAnalysisMessage
	}

	tier := advice.PremiumTier(req.SubscriptionTier)
	claim := advice.SubscriptionClaim{Tier: req.SubscriptionTier, PaymentVerified: req.PaymentVerified}
	result, err := h.advise(c, advice.RoleMarketAnalyst, tier, claim, advice.Request{
		UserID:  req.UserID,
		Message: message,
		Context: req.Context,
	})
	if err != nil {
		return writeAdviceError(c, err)
	}

	body := shortcutBody("analysis", advice.RoleMarketAnalyst, result)
	body["subscription_tier"] = tier.String()
	body["payment_verified"] = req.PaymentVerified
	return c.JSON(http.StatusOK, body)
}

// PremiumAgentChat отвечает от имени агента на премиум-тарифе.
func (h *AdviceHandler) PremiumAgentChat(c echo.Context) error {
	role, ok := advice.ParseRole(c.Param("agent"))
	if !ok {
		return notFound(c, "unknown agent")
	}

	var req PremiumChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	tier := advice.PremiumTier(req.SubscriptionTier)
	claim := advice.SubscriptionClaim{Tier: req.SubscriptionTier, PaymentVerified: req.PaymentVerified}
	result, err := h.advise(c, role, tier, claim, toAdviceRequest(req.ChatRequest))
	if err != nil {
		return writeAdviceError(c, err)
	}

	body := shortcutBody("response", role, result)
	body["subscription_tier"] = tier.String()
	body["payment_verified"] = req.PaymentVerified
	return c.JSON(http.StatusOK, body)
}

func (h *AdviceHandler) advise(c echo.Context, role advice.Role, tier advice.Tier, claim advice.SubscriptionClaim, req advice.Request) (advice.Result, error) {
	return h.Synth.Advise(c.Request().Context(), advice.Input{
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Request:   req,
		Role:      role,
		Tier:      tier,
		Claim:     claim,
	})
}

func toAdviceRequest(req ChatRequest) advice.Request {
	return advice.Request{UserID: req.UserID, Message: req.Message, Context: req.Context}
}

func toChatResponse(resp advice.Response) ChatResponse {
	return ChatResponse{
		Response:            resp.Text,
		AdviceType:          string(resp.Category),
		ActionableSteps:     resp.ActionableSteps,
		MotivationalMessage: resp.MotivationalMessage,
	}
}

func shortcutBody(field string, role advice.Role, result advice.Result) map[string]interface{} {
	return map[string]interface{}{
		field:                  result.Response.Text,
		"advice_type":          string(result.Response.Category),
		"actionable_steps":     result.Response.ActionableSteps,
		"motivational_message": result.Response.MotivationalMessage,
		"tier":                 result.Backend.Tier.String(),
		"ai_model":             result.Backend.Model,
		"agent_type":           role.Label(),
	}
}

func toAgentResponse(backend advice.BackendDescriptor, endpoint string) AgentResponse {
	return AgentResponse{
		ID:          backend.Role.Slug(),
		Name:        backend.Role.Label(),
		Description: agentDescriptions[backend.Role],
		Model:       backend.Model,
		Provider:    backend.Provider,
		Kind:        string(backend.Kind),
		Tier:        backend.Tier.String(),
		Endpoint:    endpoint,
	}
}

func agentEndpoint(role advice.Role, premium bool) string {
	if premium {
		return "/premium/agents/" + role.Slug() + "/chat"
	}
	if role == advice.RoleCoach {
		return "/stack-master/chat"
	}
	return "/agents/" + role.Slug() + "/chat"
}

// stackContext собирает контекст из заполненных полей анализа.
func stackContext(req StackAnalysisRequest) map[string]any {
	ctx := make(map[string]any)
	if req.CurrentIncome != nil {
		ctx["income"] = *req.CurrentIncome
	}
	if req.CurrentSavings != nil {
		ctx["savings"] = *req.CurrentSavings
	}
	if req.MonthlyExpenses != nil {
		ctx["monthly_expenses"] = *req.MonthlyExpenses
	}
	if req.CreditScore != nil {
		ctx["credit_score"] = *req.CreditScore
	}
	if len(req.InvestmentGoals) > 0 {
		ctx["investment_goals"] = req.InvestmentGoals
	}

	risk := strings.TrimSpace(req.RiskTolerance)
	if risk == "" {
		risk = "moderate"
	}
	ctx["risk_tolerance"] = risk
	return ctx
}
