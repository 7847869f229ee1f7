package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"

	"github.com/x-research-team/mediator"
)

// Handler возвращает обработчик уведомлений, который вместо немедленной
// доставки сохраняет уведомление типа N в хранилище outbox. Подписывается
// на медиатор как обычный обработчик:
//
//	unsubscribe, err := mediator.Subscribe(m, outbox.Handler[OrderPlaced](storage))
func Handler[N any](storage Storage) mediator.NotificationHandler[N] {
	return func(ctx context.Context, n N) error {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("не удалось сериализовать уведомление: %w", err)
		}

		metadata := map[string]string{}
		if correlationID, ok := mediator.CorrelationIDFrom(ctx); ok {
			metadata["correlation_id"] = correlationID
		}

		msg := &Message{
			ID:               uuid.New(),
			NotificationType: notificationTypeName[N](),
			Payload:          payload,
			Metadata:         metadata,
			Status:           StatusPending,
			CreatedAt:        time.Now(),
		}

		return storage.Save(ctx, msg)
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
