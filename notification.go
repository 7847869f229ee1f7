package mediator

import (
	"context"
	"fmt"
	"runtime"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
)

// Notification представляет собой интерфейс-маркер для уведомления —
// неизменяемого объекта-значения «произошло X». В отличие от запроса,
// у типа уведомления может быть ноль или много обработчиков.
type Notification interface{}

// NotificationHandler определяет строго типизированную функцию-обработчик
// уведомления типа N. Обработчик выполняет побочный эффект и возвращает
// ошибку в случае неудачи.
type NotificationHandler[N any] func(ctx context.Context, n N) error

// subscription хранит одну подписку: идентификатор для отписки, имя
// обработчика для отчетности и нетипизированный адаптер вызова.
type subscription struct {
	id     string
	name   string
	invoke func(ctx context.Context, n any) error
}

// SubscribeOption — это функциональная опция подписки.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	name string
}

// WithHandlerName задает явное имя обработчика для логов, метрик и
// агрегированных ошибок. Без опции имя извлекается из самой функции.
func WithHandlerName(name string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.name = name
	}
}

// Subscribe подписывает обработчик на уведомления конкретного типа N.
// Количество подписок на один тип не ограничено. Возвращается функция
// отписки, безопасная для повторного вызова.
func Subscribe[N any](m *Mediator, h NotificationHandler[N], opts ...SubscribeOption) (unsubscribe func(), err error) {
	if h == nil {
		return nil, fmt.Errorf("обработчик не может быть nil")
	}

	so := subscribeOptions{}
	for _, opt := range opts {
		opt(&so)
	}

	notificationType := reflect.TypeOf((*N)(nil)).Elem()
	name := so.name
	if name == "" {
		name = handlerName(h)
	}

	sub := &subscription{
		id:   uuid.NewString(),
		name: name,
		invoke: func(ctx context.Context, n any) error {
			typed, ok := n.(N)
			if !ok {
				return nil
			}
			return h(ctx, typed)
		},
	}

	m.mu.Lock()
	m.subscribers[notificationType] = append(m.subscribers[notificationType], sub)
	m.subsCache.Delete(notificationType)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		subs := m.subscribers[notificationType]
		for i, s := range subs {
			if s.id == sub.id {
				m.subscribers[notificationType] = append(subs[:i], subs[i+1:]...)
				m.subsCache.Delete(notificationType)
				break
			}
		}
	}, nil
}

// subscriptionsFor возвращает снимок подписок для типа уведомления.
// Снимок кешируется и инвалидируется при подписке и отписке, поэтому
// публикация не держит блокировку на время вызова обработчиков.
func (m *Mediator) subscriptionsFor(notificationType reflect.Type) []*subscription {
	if cached, ok := m.subsCache.Load(notificationType); ok {
		return cached.([]*subscription)
	}

	m.mu.RLock()
	subs := m.subscribers[notificationType]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)
	m.mu.RUnlock()

	m.subsCache.Store(notificationType, snapshot)
	return snapshot
}

// handlerName извлекает имя функции-обработчика.
func handlerName(handler any) string {
	v := reflect.ValueOf(handler)
	if v.Kind() == reflect.Func {
		if pc := v.Pointer(); pc != 0 {
			if f := runtime.FuncForPC(pc); f != nil {
				return f.Name()
			}
		}
	}
	return reflect.TypeOf(handler).String()
}
