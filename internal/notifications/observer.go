package notifications

import (
	"context"
	"errors"

	"example.com/stackapp/backend/internal/advice"
)

const (
	EventAdviceReady     = "advice_ready"
	EventPremiumRequired = "premium_required"
)

// AdviceNotifier публикует итоги конвейера в SSE-поток пользователя.
type AdviceNotifier struct {
	hub *Hub
}

func NewAdviceNotifier(hub *Hub) *AdviceNotifier {
	return &AdviceNotifier{hub: hub}
}

func (n *AdviceNotifier) ObserveAdvice(_ context.Context, in advice.Input, result advice.Result) {
	if n.hub == nil || in.Request.UserID == "" {
		return
	}

	n.hub.Publish(in.Request.UserID, Event{
		Type: EventAdviceReady,
		Data: map[string]interface{}{
			"request_id": result.RequestID,
			"role":       string(in.Role),
			"category":   string(result.Response.Category),
			"source":     string(result.Source),
		},
	})
}

func (n *AdviceNotifier) ObserveRejection(_ context.Context, in advice.Input, err error) {
	if n.hub == nil || in.Request.UserID == "" {
		return
	}

	data := map[string]interface{}{
		"request_id": in.RequestID,
		"role":       string(in.Role),
	}
	var gateErr *advice.PaymentRequiredError
	if errors.As(err, &gateErr) {
		data["upgrade_url"] = gateErr.UpgradeURL
	}

	n.hub.Publish(in.Request.UserID, Event{Type: EventPremiumRequired, Data: data})
}
