package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/models"
)

// InvocationStore хранит аудит вызовов конвейера советов.
type InvocationStore interface {
	Insert(ctx context.Context, record models.InvocationRecord) error
	List(ctx context.Context, filter InvocationFilter, limit, offset int) ([]models.InvocationRecord, error)
	Count(ctx context.Context, filter InvocationFilter) (int, error)
	Usage(ctx context.Context, days int) (models.UsageStats, error)
}

type InvocationFilter struct {
	Role    *string
	Source  *string
	Success *bool
}

// where строит условие с плейсхолдерами, которые возвращает placeholder(n).
func (f InvocationFilter) where(placeholder func(int) string) (string, []interface{}) {
	clauses := make([]string, 0)
	args := make([]interface{}, 0)

	if f.Role != nil {
		args = append(args, *f.Role)
		clauses = append(clauses, fmt.Sprintf("role = %s", placeholder(len(args))))
	}

	if f.Source != nil {
		args = append(args, *f.Source)
		clauses = append(clauses, fmt.Sprintf("source = %s", placeholder(len(args))))
	}

	if f.Success != nil {
		args = append(args, *f.Success)
		clauses = append(clauses, fmt.Sprintf("success = %s", placeholder(len(args))))
	}

	if len(clauses) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

const (
	defaultAuditBuffer = 256
	auditWriteTimeout  = 5 * time.Second
)

// AuditObserver ставит итог каждого запроса в очередь, которую разбирает
// Run. Запрос не ждет записи: при полной очереди запись отбрасывается.
type AuditObserver struct {
	store  InvocationStore
	logger *slog.Logger
	queue  chan models.InvocationRecord
}

// NewAuditObserver создает наблюдателя с очередью на buffer записей.
func NewAuditObserver(store InvocationStore, logger *slog.Logger, buffer int) *AuditObserver {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	return &AuditObserver{
		store:  store,
		logger: logger,
		queue:  make(chan models.InvocationRecord, buffer),
	}
}

// ObserveAdvice сохраняет успешный или fallback-ответ.
func (o *AuditObserver) ObserveAdvice(_ context.Context, in advice.Input, result advice.Result) {
	record := models.InvocationRecord{
		ID:        uuid.New(),
		RequestID: result.RequestID,
		Role:      string(in.Role),
		Tier:      result.Backend.Tier.String(),
		Kind:      string(result.Backend.Kind),
		Provider:  result.Backend.Provider,
		Model:     result.Backend.Model,
		Category:  string(result.Response.Category),
		Source:    models.InvocationSource(result.Source),
		Success:   result.Failure == nil,
		LatencyMS: result.Latency.Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}
	if result.Failure != nil {
		reason := string(result.Failure.Reason)
		record.FailureReason = &reason
	}

	o.enqueue(record)
}

// ObserveRejection сохраняет отказ гейта.
func (o *AuditObserver) ObserveRejection(_ context.Context, in advice.Input, err error) {
	reason := err.Error()
	var gateErr *advice.PaymentRequiredError
	if errors.As(err, &gateErr) {
		reason = gateErr.Code
	}

	o.enqueue(models.InvocationRecord{
		ID:            uuid.New(),
		RequestID:     in.RequestID,
		Role:          string(in.Role),
		Tier:          in.Tier.String(),
		Source:        models.SourceRejected,
		Success:       false,
		FailureReason: &reason,
		CreatedAt:     time.Now().UTC(),
	})
}

func (o *AuditObserver) enqueue(record models.InvocationRecord) {
	select {
	case o.queue <- record:
	default:
		o.logger.Warn("audit queue full, record dropped",
			slog.String("request_id", record.RequestID),
			slog.String("role", record.Role),
		)
	}
}

// Run пишет записи из очереди до отмены ctx. После отмены дописывает то,
// что уже стоит в очереди, и возвращает nil.
func (o *AuditObserver) Run(ctx context.Context) error {
	for {
		select {
		case record := <-o.queue:
			o.write(ctx, record)
		case <-ctx.Done():
			o.drain(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (o *AuditObserver) drain(ctx context.Context) {
	for {
		select {
		case record := <-o.queue:
			o.write(ctx, record)
		default:
			return
		}
	}
}

func (o *AuditObserver) write(ctx context.Context, record models.InvocationRecord) {
	writeCtx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := o.store.Insert(writeCtx, record); err != nil {
		o.logger.Error("audit insert failed",
			slog.String("request_id", record.RequestID),
			slog.String("error", err.Error()),
		)
	}
}
