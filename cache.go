package mediator

import (
	"context"

	"github.com/goccy/go-reflect"
)

// wrapper — это собранный конвейер для одного конкретного типа запроса:
// адаптер обработчика, срез применимых перехватчиков и признак аудита.
// Конвейер строится один раз при первой диспетчеризации типа и живет до
// конца процесса; пространство ключей ограничено множеством типов запросов
// программы, поэтому кеш не ограничивается по размеру.
type wrapper struct {
	typeName   string
	entry      *handlerEntry
	intercepts []Intercept
	// audited — тип запроса реализует Auditable; само значение флага
	// читается у экземпляра при каждом вызове.
	audited bool
}

// invokeFrom выполняет остаток цепочки перехватчиков начиная с индекса i.
// Терминальным звеном цепочки является обработчик. Остаток представлен
// индексом в неизменяемом срезе, поэтому вызов не перестраивает цепочку
// и не выделяет промежуточных списков.
func (w *wrapper) invokeFrom(ctx context.Context, rc *RequestContext, i int) (any, error) {
	if i >= len(w.intercepts) {
		return w.entry.invoke(ctx, rc.Request)
	}
	return w.intercepts[i].Handle(ctx, rc, func() (any, error) {
		return w.invokeFrom(ctx, rc, i+1)
	})
}

// pipelineFor возвращает кешированный конвейер для типа запроса, собирая его
// при промахе. Конкурентная первая диспетчеризация одного типа может собрать
// конвейер дважды; это расточительно, но безопасно — последний записавший
// побеждает, все вызывающие получают функционально эквивалентный экземпляр.
// Отсутствие обработчика не кешируется: регистрация может завершиться позже.
func (m *Mediator) pipelineFor(requestType reflect.Type, req any) (*wrapper, bool) {
	if cached, ok := m.pipelines.Load(requestType); ok {
		return cached.(*wrapper), true
	}

	m.mu.RLock()
	entry, ok := m.handlers[requestType]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	w := &wrapper{
		typeName:   entry.typeName,
		entry:      entry,
		intercepts: applicableIntercepts(m.cfg.intercepts, requestType),
	}
	_, w.audited = req.(Auditable)

	m.pipelines.Store(requestType, w)
	return w, true
}
