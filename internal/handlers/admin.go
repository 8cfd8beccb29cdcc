package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/models"
	"example.com/stackapp/backend/internal/repository"
)

const timeLayout = time.RFC3339

type AdminHandler struct {
	Store repository.InvocationStore
}

// NewAdminHandler создает обработчик админских эндпоинтов.
func NewAdminHandler(store repository.InvocationStore) *AdminHandler {
	return &AdminHandler{Store: store}
}

type AdminInvocationResponse struct {
	ID            uuid.UUID `json:"id"`
	RequestID     string    `json:"request_id"`
	Role          string    `json:"role"`
	Tier          string    `json:"tier"`
	Kind          string    `json:"kind,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Model         string    `json:"model,omitempty"`
	Category      string    `json:"category,omitempty"`
	Source        string    `json:"source"`
	Success       bool      `json:"success"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     string    `json:"created_at"`
}

type AdminInvocationsResponse struct {
	Total       int                       `json:"total"`
	Invocations []AdminInvocationResponse `json:"invocations"`
}

type AdminUsageDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminUsageResponse struct {
	Total    int                `json:"total"`
	Live     int                `json:"live"`
	Fallback int                `json:"fallback"`
	Rejected int                `json:"rejected"`
	ByRole   []models.RoleUsage `json:"by_role"`
	ByDay    []AdminUsageDay    `json:"by_day"`
}

// ListInvocations возвращает журнал вызовов с фильтрами.
func (h *AdminHandler) ListInvocations(c echo.Context) error {
	if h.Store == nil {
		return serviceUnavailable(c, "audit log disabled")
	}

	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := repository.InvocationFilter{}
	if raw := strings.TrimSpace(c.QueryParam("role")); raw != "" {
		role, ok := advice.ParseRole(raw)
		if !ok {
			return badRequest(c, "invalid role")
		}
		value := string(role)
		filter.Role = &value
	}

	if raw := strings.TrimSpace(c.QueryParam("source")); raw != "" {
		switch models.InvocationSource(raw) {
		case models.SourceLive, models.SourceFallback, models.SourceRejected:
		default:
			return badRequest(c, "invalid source")
		}
		filter.Source = &raw
	}

	if raw := strings.TrimSpace(c.QueryParam("success")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid success")
		}
		filter.Success = &parsed
	}

	records, err := h.Store.List(c.Request().Context(), filter, limit, offset)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Store.Count(c.Request().Context(), filter)
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminInvocationResponse, 0, len(records))
	for _, record := range records {
		response = append(response, AdminInvocationResponse{
			ID:            record.ID,
			RequestID:     record.RequestID,
			Role:          record.Role,
			Tier:          record.Tier,
			Kind:          record.Kind,
			Provider:      record.Provider,
			Model:         record.Model,
			Category:      record.Category,
			Source:        string(record.Source),
			Success:       record.Success,
			FailureReason: record.FailureReason,
			LatencyMS:     record.LatencyMS,
			CreatedAt:     record.CreatedAt.Format(timeLayout),
		})
	}

	return c.JSON(http.StatusOK, AdminInvocationsResponse{
		Total:       total,
		Invocations: response,
	})
}

// Usage возвращает агрегированную статистику использования.
func (h *AdminHandler) Usage(c echo.Context) error {
	if h.Store == nil {
		return serviceUnavailable(c, "audit log disabled")
	}

	days := 7
	if raw := strings.TrimSpace(c.QueryParam("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "invalid days")
		}
		if parsed > 30 {
			parsed = 30
		}
		days = parsed
	}

	stats, err := h.Store.Usage(c.Request().Context(), days)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "invalid days")
		}
		return serverError(c)
	}

	daysResponse := make([]AdminUsageDay, 0, len(stats.ByDay))
	for _, day := range stats.ByDay {
		daysResponse = append(daysResponse, AdminUsageDay{
			Date:  day.Day.Format("2006-01-02"),
			Count: day.Count,
		})
	}

	return c.JSON(http.StatusOK, AdminUsageResponse{
		Total:    stats.Total,
		Live:     stats.Live,
		Fallback: stats.Fallback,
		Rejected: stats.Rejected,
		ByRole:   stats.ByRole,
		ByDay:    daysResponse,
	})
}

func parsePagination(c echo.Context, defaultLimit, maxLimit int) (int, int, error) {
	limit := defaultLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if parsed > maxLimit {
			parsed = maxLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := strings.TrimSpace(c.QueryParam("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = parsed
	}

	return limit, offset, nil
}
