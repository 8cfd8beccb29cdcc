package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	appName    = "StackApp"
	appTagline = "Stack your bread, stack your future"
	appVersion = "1.0.0"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type InfoResponse struct {
	App     string `json:"app"`
	Tagline string `json:"tagline"`
	Version string `json:"version"`
	AICoach string `json:"ai_coach"`
	Status  string `json:"status"`
	Mode    string `json:"mode"`
}

// Health возвращает простой статус сервиса.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(timeLayout),
	})
}

// Info возвращает описание сервиса. mode показывает, вызываются ли модели.
func Info(mode string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, InfoResponse{
			App:     appName,
			Tagline: appTagline,
			Version: appVersion,
			AICoach: "The Stack Master",
			Status:  "ready",
			Mode:    mode,
		})
	}
}
