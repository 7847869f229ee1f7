// Package nats реализует пересылку уведомлений медиатора во внешний брокер
// NATS. Пересыльщик подписывается на медиатор как обычный обработчик и
// публикует сериализованное уведомление в тему, производную от имени типа.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/goccy/go-reflect"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/x-research-team/mediator"
)

// Conn определяет минимальный контракт соединения с NATS, необходимый
// пересыльщику. Ему удовлетворяет *nats.Conn.
type Conn interface {
	// PublishMsg публикует сообщение в указанную в нем тему.
	PublishMsg(msg *nats.Msg) error
}

// Заголовок, в котором передается идентификатор корреляции.
const headerCorrelationID = "Mediator-Correlation-Id"

// Option определяет функцию для конфигурации Forwarder.
type Option func(*Forwarder)

// WithSubjectPrefix устанавливает префикс темы NATS. Итоговая тема имеет
// вид "<префикс>.<ИмяТипаУведомления>".
func WithSubjectPrefix(prefix string) Option {
	return func(f *Forwarder) {
		f.subjectPrefix = prefix
	}
}

// WithPropagator устанавливает механизм распространения контекста трассировки
// в заголовки сообщений. По умолчанию используется глобальный пропагатор OTel.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(f *Forwarder) {
		f.propagator = p
	}
}

// Forwarder пересылает уведомления в NATS.
type Forwarder struct {
	conn          Conn
	subjectPrefix string
	propagator    propagation.TextMapPropagator
}

// NewForwarder создает новый экземпляр Forwarder.
func NewForwarder(conn Conn, opts ...Option) (*Forwarder, error) {
	if conn == nil {
		return nil, fmt.Errorf("соединение с NATS не может быть nil")
	}

	f := &Forwarder{
		conn:          conn,
		subjectPrefix: "notifications",
		propagator:    otel.GetTextMapPropagator(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Handler возвращает обработчик уведомлений типа N, пересылающий каждое
// уведомление в NATS. Подписывается на медиатор как обычный обработчик:
//
//	unsubscribe, err := mediator.Subscribe(m, forwarder.Handler[OrderPlaced](fwd))
func Handler[N any](f *Forwarder) mediator.NotificationHandler[N] {
	subject := f.subjectPrefix + "." + notificationTypeName[N]()

	return func(ctx context.Context, n N) error {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("не удалось сериализовать уведомление: %w", err)
		}

		msg := nats.NewMsg(subject)
		msg.Data = payload

		f.propagator.Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))
		if correlationID, ok := mediator.CorrelationIDFrom(ctx); ok {
			msg.Header.Set(headerCorrelationID, correlationID)
		}

		if err := f.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("не удалось опубликовать уведомление в NATS: %w", err)
		}

		return nil
	}
}

// notificationTypeName возвращает короткое имя конкретного типа уведомления.
func notificationTypeName[N any]() string {
	t := reflect.TypeOf((*N)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
