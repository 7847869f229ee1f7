package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Storage определяет контракт для персистентного хранения сообщений outbox.
// Все операции должны быть потокобезопасными.
type Storage interface {
	// Save сохраняет сообщение в хранилище.
	Save(ctx context.Context, msg *Message) error

	// Fetch извлекает необработанные сообщения из хранилища в порядке
	// создания, не более limit за раз.
	Fetch(ctx context.Context, limit int) ([]*Message, error)

	// MarkProcessed помечает сообщения как обработанные.
	MarkProcessed(ctx context.Context, ids ...uuid.UUID) error
}
