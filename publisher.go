package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-reflect"

	"github.com/x-research-team/mediator/result"
)

// Publish доставляет уведомление всем подписчикам его конкретного типа по
// выбранной стратегии. Тип без единого подписчика — не ошибка: публикация
// завершается успехом и фиксируется в метриках как необработанная.
//
// Для стратегий Sequential, FailFast и Parallel отказы обработчиков
// агрегируются в один неуспешный Result; вторая возвращаемая ошибка не равна
// nil только при кооперативной отмене. FireAndForget всегда возвращает успех
// немедленно после постановки в очередь.
func Publish(ctx context.Context, m *Mediator, n Notification, opts ...PublishOption) (result.Result[result.Void], error) {
	if n == nil {
		return result.ErrVoid(fmt.Errorf("уведомление не может быть nil")), nil
	}

	po := publishOptions{}
	for _, opt := range opts {
		opt(&po)
	}

	notificationType := reflect.TypeOf(n)
	name := typeName(notificationType)
	strategy := m.resolveStrategy(n, &po)

	ctx, span := m.tel.startPublishSpan(ctx, name, strategy.String())
	started := time.Now()

	subs := m.subscriptionsFor(notificationType)
	if len(subs) == 0 {
		m.tel.endSpan(span, nil, false)
		m.tel.recordPublish(ctx, name, strategy, statusUnhandled, time.Since(started))
		return result.OkVoid(), nil
	}

	if strategy == FireAndForget {
		m.publishDetached(ctx, n, name, subs)
		m.tel.endSpan(span, nil, false)
		m.tel.recordPublish(ctx, name, strategy, statusSuccess, time.Since(started))
		return result.OkVoid(), nil
	}

	var agg *AggregateError
	switch strategy {
	case FailFast:
		agg = m.publishFailFast(ctx, n, name, subs)
	case Parallel:
		agg = m.publishParallel(ctx, n, name, subs)
	default:
		agg = m.publishSequential(ctx, n, name, subs)
	}
	duration := time.Since(started)

	switch {
	case agg == nil:
		m.tel.endSpan(span, nil, false)
		m.tel.recordPublish(ctx, name, strategy, statusSuccess, duration)
		return result.OkVoid(), nil
	case ctx.Err() != nil:
		// Отказы на фоне отмененного контекста классифицируются как отмена.
		m.tel.endSpan(span, ctx.Err(), true)
		m.tel.recordPublish(ctx, name, strategy, statusCanceled, duration)
		return result.ErrVoid(ctx.Err()), ctx.Err()
	default:
		m.tel.endSpan(span, agg, false)
		m.tel.recordPublish(ctx, name, strategy, statusError, duration)
		return result.ErrVoid(agg), nil
	}
}

// publishSequential выполняет обработчики по очереди, собирая все отказы.
func (m *Mediator) publishSequential(ctx context.Context, n any, name string, subs []*subscription) *AggregateError {
	var failures []*HandlerError
	for _, sub := range subs {
		if err := m.runHandler(ctx, n, name, sub); err != nil {
			failures = append(failures, &HandlerError{Handler: sub.name, Err: err})
		}
	}
	return aggregate(name, failures)
}

// publishFailFast выполняет обработчики по очереди и останавливается на
// первом отказе; последующие обработчики не запускаются.
func (m *Mediator) publishFailFast(ctx context.Context, n any, name string, subs []*subscription) *AggregateError {
	for _, sub := range subs {
		if err := m.runHandler(ctx, n, name, sub); err != nil {
			return aggregate(name, []*HandlerError{{Handler: sub.name, Err: err}})
		}
	}
	return nil
}

// publishParallel запускает все обработчики конкурентно и дожидается
// завершения каждого; отсоединенных задач эта стратегия не оставляет.
func (m *Mediator) publishParallel(ctx context.Context, n any, name string, subs []*subscription) *AggregateError {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []*HandlerError
	)

	for _, sub := range subs {
		wg.Add(1)
		go func(sub *subscription) {
			defer wg.Done()
			if err := m.runHandler(ctx, n, name, sub); err != nil {
				mu.Lock()
				failures = append(failures, &HandlerError{Handler: sub.name, Err: err})
				mu.Unlock()
			}
		}(sub)
	}
	wg.Wait()

	return aggregate(name, failures)
}

// publishDetached ставит обработчики в пул воркеров и возвращается, не
// дожидаясь их завершения. Обработчики получают контекст, переживающий
// отмену исходного вызова; их ошибки и паники только логируются.
func (m *Mediator) publishDetached(ctx context.Context, n any, name string, subs []*subscription) {
	detachedCtx := context.WithoutCancel(ctx)

	for _, sub := range subs {
		sub := sub
		m.detached.Add(1)
		task := func() {
			defer m.detached.Done()
			if err := m.runHandler(detachedCtx, n, name, sub); err != nil {
				m.cfg.logger.Error("ошибка обработчика уведомления в режиме fire-and-forget",
					slog.String("notification_type", name),
					slog.String("handler_name", sub.name),
					slog.Any("error", err),
				)
			}
		}
		if !m.pool.submit(task) {
			// Очередь пула переполнена или пул остановлен: задача
			// выполняется в собственной горутине, публикация не блокируется.
			go task()
		}
	}
}

// runHandler выполняет один обработчик с изоляцией паник: паника одного
// обработчика не валит ни соседние обработчики, ни хост-процесс.
func (m *Mediator) runHandler(ctx context.Context, n any, name string, sub *subscription) error {
	started := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("паника в обработчике уведомления '%s': %v", sub.name, r)
			}
		}()
		return sub.invoke(ctx, n)
	}()
	m.tel.recordConsume(ctx, name, sub.name, err, time.Since(started))
	return err
}

// aggregate сворачивает список отказов в AggregateError; пустой список — nil.
func aggregate(name string, failures []*HandlerError) *AggregateError {
	if len(failures) == 0 {
		return nil
	}
	return &AggregateError{NotificationType: name, Errors: failures}
}
