// Package outbox реализует надежную ретрансляцию уведомлений по паттерну
// Transactional Outbox: обработчик-подписчик сохраняет уведомление в
// персистентное хранилище, а фоновый ретранслятор повторно публикует
// накопленные сообщения через медиатор. Пакет — листовой коллаборатор
// медиатора; гарантии доставки за границу процесса остаются на стороне
// хранилища и потребителей.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

const (
	// StatusPending означает, что сообщение ожидает ретрансляции.
	StatusPending = "PENDING"
	// StatusProcessed означает, что сообщение было успешно ретранслировано.
	StatusProcessed = "PROCESSED"
)

// Message представляет уведомление, сохраненное в хранилище outbox.
type Message struct {
	ID               uuid.UUID         // Уникальный идентификатор сообщения
	NotificationType string            // Имя конкретного типа уведомления
	Payload          []byte            // Сериализованное тело уведомления
	Metadata         map[string]string // Метаданные (корреляция и т.д.)
	Status           string            // Статус (PENDING, PROCESSED)
	CreatedAt        time.Time         // Время создания
	ProcessedAt      *time.Time        // Время ретрансляции
}
