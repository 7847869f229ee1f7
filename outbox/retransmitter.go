package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/x-research-team/mediator"
)

// RetransmitterOption определяет функцию для конфигурации Retransmitter.
type RetransmitterOption func(*Retransmitter)

// WithInterval устанавливает интервал опроса хранилища.
func WithInterval(interval time.Duration) RetransmitterOption {
	return func(r *Retransmitter) {
		r.interval = interval
	}
}

// WithLimit устанавливает максимальное количество сообщений, извлекаемых
// за один цикл.
func WithLimit(limit int) RetransmitterOption {
	return func(r *Retransmitter) {
		r.limit = limit
	}
}

// WithLogger устанавливает логгер ретранслятора.
func WithLogger(logger *slog.Logger) RetransmitterOption {
	return func(r *Retransmitter) {
		r.logger = logger
	}
}

// WithStrategy устанавливает стратегию доставки при повторной публикации.
func WithStrategy(s mediator.Strategy) RetransmitterOption {
	return func(r *Retransmitter) {
		r.strategy = s
	}
}

// decoder восстанавливает уведомление конкретного типа из тела сообщения.
type decoder func(payload []byte) (any, error)

// Retransmitter — это фоновый процесс, который периодически извлекает
// необработанные сообщения из хранилища и повторно публикует их через
// медиатор. Успешно опубликованные сообщения помечаются как обработанные;
// сообщения неизвестных типов и сбои публикации оставляются на следующий цикл.
type Retransmitter struct {
	storage  Storage
	m        *mediator.Mediator
	decoders map[string]decoder
	strategy mediator.Strategy
	ticker   *time.Ticker
	done     chan struct{}
	interval time.Duration
	limit    int
	logger   *slog.Logger
}

// NewRetransmitter создает новый экземпляр Retransmitter.
func NewRetransmitter(storage Storage, m *mediator.Mediator, opts ...RetransmitterOption) *Retransmitter {
	r := &Retransmitter{
		storage:  storage,
		m:        m,
		decoders: make(map[string]decoder),
		strategy: mediator.Sequential,
		done:     make(chan struct{}),
		interval: 5 * time.Second,
		limit:    100,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RegisterType регистрирует тип уведомления N в ретрансляторе. Только
// зарегистрированные типы могут быть восстановлены из хранилища и
// опубликованы повторно.
func RegisterType[N any](r *Retransmitter) {
	r.decoders[notificationTypeName[N]()] = func(payload []byte) (any, error) {
		var n N
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// Start запускает фоновый процесс ретрансляции.
func (r *Retransmitter) Start() {
	r.ticker = time.NewTicker(r.interval)
	go func() {
		r.logger.Info("ретранслятор outbox запущен")
		for {
			select {
			case <-r.ticker.C:
				if err := r.processBatch(context.Background()); err != nil {
					r.logger.Error("ошибка при обработке пакета outbox", slog.Any("error", err))
				}
			case <-r.done:
				r.logger.Info("ретранслятор outbox остановлен")
				return
			}
		}
	}()
}

// processBatch выполняет один цикл выборки и повторной публикации.
func (r *Retransmitter) processBatch(ctx context.Context) error {
	messages, err := r.storage.Fetch(ctx, r.limit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	processedIDs := make([]uuid.UUID, 0, len(messages))
	for _, msg := range messages {
		decode, ok := r.decoders[msg.NotificationType]
		if !ok {
			r.logger.Warn("тип уведомления не зарегистрирован в ретрансляторе",
				slog.String("notification_type", msg.NotificationType),
				slog.String("message_id", msg.ID.String()),
			)
			continue
		}

		notification, err := decode(msg.Payload)
		if err != nil {
			r.logger.Error("ошибка десериализации сообщения outbox",
				slog.String("message_id", msg.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		publishCtx := ctx
		if correlationID, ok := msg.Metadata["correlation_id"]; ok {
			publishCtx = mediator.WithCorrelationID(ctx, correlationID)
		}

		res, err := mediator.Publish(publishCtx, r.m, notification, mediator.WithStrategy(r.strategy))
		if err != nil || res.IsFailure() {
			if err == nil {
				err = res.Err()
			}
			r.logger.Error("ошибка повторной публикации уведомления",
				slog.String("message_id", msg.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		processedIDs = append(processedIDs, msg.ID)
	}

	if len(processedIDs) > 0 {
		if err := r.storage.MarkProcessed(ctx, processedIDs...); err != nil {
			return err
		}
	}

	return nil
}

// Stop останавливает фоновый процесс.
func (r *Retransmitter) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.done)
}
