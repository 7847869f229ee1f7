package mediator

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Principal представляет собой снимок аутентифицированного субъекта вызова.
// Снимок неизменяем в рамках одной диспетчеризации.
type Principal struct {
	Subject string
	Name    string
	Roles   []string
}

// HasRole сообщает, обладает ли принципал указанной ролью.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequestContext — это контекст одной диспетчеризации: идентичность операции,
// корреляция, момент начала, принципал и исходный запрос. Контекст строится
// не более одного раза на вызов и только тогда, когда он действительно нужен
// (есть перехватчики или запрос помечен для аудита); на горячем пути без
// перехватчиков он не выделяется вовсе. Контекст принадлежит стеку одной
// диспетчеризации и не должен сохраняться после ее завершения.
type RequestContext struct {
	// RequestID — уникальный идентификатор данной диспетчеризации.
	RequestID string
	// CorrelationID — сквозной идентификатор, извлеченный из context.Context
	// вызова либо сгенерированный заново.
	CorrelationID string
	// StartedAt — момент начала диспетчеризации.
	StartedAt time.Time
	// Principal — снимок принципала вызова, если он был установлен.
	Principal *Principal
	// Request — исходный экземпляр запроса. Конвейер не изменяет его.
	Request any
	// RequestType — имя конкретного типа запроса.
	RequestType string
}

type ctxKey int

const (
	principalKey ctxKey = iota
	correlationKey
)

// WithPrincipal возвращает контекст с установленным принципалом вызова.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom извлекает принципала вызова из контекста.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithCorrelationID возвращает контекст с установленным сквозным идентификатором.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFrom извлекает сквозной идентификатор из контекста.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey).(string)
	return id, ok && id != ""
}

// newRequestContext строит контекст диспетчеризации.
func (m *Mediator) newRequestContext(ctx context.Context, req any, typeName string, started time.Time) *RequestContext {
	m.contextBuilds.Add(1)

	correlationID, ok := CorrelationIDFrom(ctx)
	if !ok {
		correlationID = uuid.NewString()
	}
	principal, _ := PrincipalFrom(ctx)

	return &RequestContext{
		RequestID:     uuid.NewString(),
		CorrelationID: correlationID,
		StartedAt:     started,
		Principal:     principal,
		Request:       req,
		RequestType:   typeName,
	}
}
