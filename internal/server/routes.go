package server

import (
	"github.com/labstack/echo/v4"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	infoHandler echo.HandlerFunc,
	metricsHandler echo.HandlerFunc,
	adviceHandler *handlers.AdviceHandler,
	notificationHandler *handlers.NotificationHandler,
	adminHandler *handlers.AdminHandler,
	aiRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/", infoHandler)
	e.GET("/health", handlers.Health)
	e.GET("/metrics", metricsHandler)
	e.GET("/agents", adviceHandler.ListAgents)

	stackMaster := e.Group("/stack-master", aiRateLimiter)
	stackMaster.POST("/chat", adviceHandler.Chat)
	stackMaster.POST("/analyze-stack", adviceHandler.AnalyzeStack)

	agents := e.Group("/agents", aiRateLimiter)
	agents.POST("/:agent/chat", adviceHandler.AgentChat)

	e.POST("/investment/advice", adviceHandler.Shortcut(advice.RoleExpertInvestor, "advice"), aiRateLimiter)
	e.POST("/credit/building-plan", adviceHandler.Shortcut(advice.RoleFinancialAnalyst, "plan"), aiRateLimiter)
	e.POST("/budget/analysis", adviceHandler.Shortcut(advice.RoleAccountant, "analysis"), aiRateLimiter)
	e.POST("/market/analysis", adviceHandler.Shortcut(advice.RoleMarketAnalyst, "analysis"), aiRateLimiter)

	premium := e.Group("/premium", aiRateLimiter)
	premium.POST("/finrobot-agents", adviceHandler.PremiumAgents)
	premium.POST("/advanced-analysis", adviceHandler.AdvancedAnalysis)
	premium.POST("/agents/:agent/chat", adviceHandler.PremiumAgentChat)

	api := e.Group("/api/v1")
	notifications := api.Group("/notifications")
	notifications.GET("/stream", notificationHandler.Stream)

	if adminHandler != nil {
		admin := api.Group("/admin")
		admin.GET("/invocations", adminHandler.ListInvocations)
		admin.GET("/usage", adminHandler.Usage)
	}
}
