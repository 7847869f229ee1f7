package mediator

import (
	"context"
	"log/slog"
	"time"
)

// Auditable — опциональный интерфейс типа запроса: если Auditable()
// возвращает true, медиатор после финализации основного результата публикует
// ровно одно уведомление RequestCompleted в режиме fire-and-forget.
type Auditable interface {
	Auditable() bool
}

// RequestCompleted — это аудит-уведомление о завершении диспетчеризации
// запроса. Публикуется независимо от исхода основного вызова и никогда не
// влияет на него.
type RequestCompleted struct {
	RequestID     string
	RequestType   string
	CorrelationID string
	Principal     *Principal
	// Outcome принимает значения success, error или canceled.
	Outcome    string
	Duration   time.Duration
	OccurredAt time.Time
}

// publishAudit публикует аудит-уведомление о завершении запроса.
// Любой сбой аудита — включая панику подписчика на пути постановки в
// очередь — перехватывается и только логируется: сломанный аудит-приемник
// не должен ронять бизнес-вызов.
func (m *Mediator) publishAudit(ctx context.Context, rc *RequestContext, req any, outcome string, duration time.Duration) {
	a, ok := req.(Auditable)
	if !ok || !a.Auditable() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.cfg.logger.Error("паника при публикации аудит-уведомления",
				slog.String("request_type", rc.RequestType),
				slog.Any("panic", r),
			)
		}
	}()

	completed := RequestCompleted{
		RequestID:     rc.RequestID,
		RequestType:   rc.RequestType,
		CorrelationID: rc.CorrelationID,
		Principal:     rc.Principal,
		Outcome:       outcome,
		Duration:      duration,
		OccurredAt:    time.Now(),
	}

	res, err := Publish(ctx, m, completed, WithStrategy(FireAndForget))
	if err != nil || res.IsFailure() {
		if err == nil {
			err = res.Err()
		}
		m.cfg.logger.Error("ошибка публикации аудит-уведомления",
			slog.String("request_type", rc.RequestType),
			slog.String("request_id", rc.RequestID),
			slog.Any("error", err),
		)
	}
}
