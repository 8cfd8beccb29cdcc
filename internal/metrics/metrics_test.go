package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/stackapp/backend/internal/advice"
)

// TestObserveAdvice проверяет счетчики живых и fallback-ответов.
func TestObserveAdvice(t *testing.T) {
	m := New()
	in := advice.Input{Role: advice.RoleCoach}
	backend := advice.BackendDescriptor{Provider: "hf-inference", Kind: advice.KindHostedInference}

	m.ObserveAdvice(context.Background(), in, advice.Result{
		Source:   advice.SourceLive,
		Backend:  backend,
		Response: advice.Response{Category: advice.CategorySavings},
		Latency:  50 * time.Millisecond,
	})
	m.ObserveAdvice(context.Background(), in, advice.Result{
		Source:   advice.SourceFallback,
		Backend:  backend,
		Failure:  &advice.InvocationFailure{Reason: advice.ReasonTimeout},
		Response: advice.Response{Category: advice.CategoryGeneral},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdviceRequestsTotal.WithLabelValues("coach", "live", "savings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("coach", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendInvocations.WithLabelValues("hf-inference", "hosted_inference", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendInvocations.WithLabelValues("hf-inference", "hosted_inference", "timeout")))
}

// TestObserveRejection проверяет счетчик отказов гейта.
func TestObserveRejection(t *testing.T) {
	m := New()
	in := advice.Input{Role: advice.RoleMarketAnalyst}

	m.ObserveRejection(context.Background(), in, &advice.PaymentRequiredError{Code: "payment_required"})
	m.ObserveRejection(context.Background(), in, advice.ErrUnknownRole)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRejectionsTotal.WithLabelValues("market_analyst")))
}

// TestMiddlewareAndHandler проверяет HTTP-метрики и экспозицию.
func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/health", "GET", "2xx")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stackapp_http_requests_total"))
}
