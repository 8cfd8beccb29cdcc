package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"example.com/stackapp/backend/internal/advice"
)

type PaymentRequiredResponse struct {
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	UpgradeURL string   `json:"upgrade_url"`
	Features   []string `json:"features"`
}

// writeAdviceError переводит ошибки конвейера в HTTP-ответы.
func writeAdviceError(c echo.Context, err error) error {
	var validationErr *advice.ValidationError
	var paymentErr *advice.PaymentRequiredError
	var internalErr *advice.InternalError

	switch {
	case errors.As(err, &validationErr):
		return badRequest(c, validationErr.Error())
	case errors.Is(err, advice.ErrUnknownRole):
		return notFound(c, "unknown agent")
	case errors.As(err, &paymentErr):
		return c.JSON(http.StatusPaymentRequired, PaymentRequiredResponse{
			Error:      paymentErr.Code,
			Message:    paymentErr.Message,
			UpgradeURL: paymentErr.UpgradeURL,
			Features:   paymentErr.Features,
		})
	case errors.As(err, &internalErr):
		slog.Error("advice pipeline failed",
			slog.String("path", c.Path()),
			slog.String("error", internalErr.Error()),
		)
		return serverError(c)
	default:
		slog.Error("unexpected advice error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		return serverError(c)
	}
}

// validationMessage возвращает первое нарушенное правило в виде "поле: правило".
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: %s", fe.Field(), fe.Tag())
	}
	return "validation failed"
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func serviceUnavailable(c echo.Context, message string) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
