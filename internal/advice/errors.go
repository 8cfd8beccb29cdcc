package advice

import (
	"errors"
	"fmt"
)

var ErrUnknownRole = errors.New("unknown agent role")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PaymentRequiredError возвращается гейтом, когда премиум-доступ не подтвержден оплатой.
type PaymentRequiredError struct {
	Code       string
	Message    string
	UpgradeURL string
	Features   []string
	Role       Role
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type FailureReason string

const (
	ReasonNotConfigured FailureReason = "not_configured"
	ReasonTimeout       FailureReason = "timeout"
	ReasonCanceled      FailureReason = "canceled"
	ReasonStatus        FailureReason = "status"
	ReasonTransport     FailureReason = "transport"
	ReasonMalformed     FailureReason = "malformed"
	ReasonEmpty         FailureReason = "empty"
)

// InvocationFailure описывает неудачный вызов модели. Наружу не отдается,
// синтезатор заменяет его ответом из Content Bank.
type InvocationFailure struct {
	Provider   string
	Model      string
	Reason     FailureReason
	StatusCode int
	Err        error
}

func (e *InvocationFailure) Error() string {
	msg := fmt.Sprintf("invoke %s/%s: %s", e.Provider, e.Model, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *InvocationFailure) Unwrap() error {
	return e.Err
}

type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("advice pipeline: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
