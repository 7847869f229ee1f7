package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-reflect"

	"github.com/x-research-team/mediator/result"
)

// Request представляет собой интерфейс-маркер для запроса, параметризованный
// типом ответа R. Запрос — это неизменяемый объект-значение («сделай X» или
// «верни X»), идентичность которого определяется его конкретным типом во
// время выполнения. Для каждого типа запроса может быть зарегистрирован
// ровно один обработчик.
type Request[R any] interface{}

// Handler определяет строго типизированную функцию-обработчик для запроса Q,
// которая возвращает значение типа R или ошибку.
type Handler[Q Request[R], R any] func(ctx context.Context, q Q) (R, error)

// handlerEntry — это нетипизированный адаптер зарегистрированного обработчика,
// привязанный к конкретной паре типов запрос/ответ.
type handlerEntry struct {
	typeName string
	invoke   func(ctx context.Context, req any) (any, error)
}

// RegisterHandler регистрирует обработчик для конкретного типа запроса.
// Повторная регистрация для того же типа возвращает ошибку: наличие более
// одного обработчика на закрытый тип запроса — ошибка конфигурации хоста.
func RegisterHandler[Q Request[R], R any](m *Mediator, h Handler[Q, R]) error {
	if h == nil {
		return fmt.Errorf("обработчик не может быть nil")
	}

	requestType := reflect.TypeOf((*Q)(nil)).Elem()
	name := typeName(requestType)
	entry := &handlerEntry{
		typeName: name,
		invoke: func(ctx context.Context, req any) (any, error) {
			q, ok := req.(Q)
			if !ok {
				return nil, fmt.Errorf("запрос имеет тип %T, обработчик зарегистрирован для '%s'", req, name)
			}
			return h(ctx, q)
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handlers[requestType]; exists {
		return fmt.Errorf("обработчик для запроса '%s' уже зарегистрирован", name)
	}
	m.handlers[requestType] = entry
	m.pipelines.Delete(requestType)

	return nil
}

// RegisterVoidHandler регистрирует обработчик запроса без ответа.
func RegisterVoidHandler[Q Request[result.Void]](m *Mediator, h func(ctx context.Context, q Q) error) error {
	if h == nil {
		return fmt.Errorf("обработчик не может быть nil")
	}
	return RegisterHandler(m, func(ctx context.Context, q Q) (result.Void, error) {
		return result.Void{}, h(ctx, q)
	})
}

// Dispatch находит обработчик по типу запроса во время выполнения, проводит
// вызов через цепочку применимых перехватчиков и возвращает результат.
//
// Бизнес-ошибки — включая отсутствие обработчика — возвращаются внутри
// неуспешного Result; вторая возвращаемая ошибка не равна nil только при
// кооперативной отмене, которая не конвертируется в Result, а поднимается
// к вызывающей стороне. Телеметрия закрывается ровно один раз при любом
// исходе; невосстановимые паники не перехватываются.
func Dispatch[R any](ctx context.Context, m *Mediator, req Request[R]) (result.Result[R], error) {
	if req == nil {
		return result.Err[R](fmt.Errorf("запрос не может быть nil")), nil
	}

	requestType := reflect.TypeOf(req)
	name := typeName(requestType)
	responseType := reflect.TypeOf((*R)(nil)).Elem()
	hasResponse := responseType != reflect.TypeOf(result.Void{})

	ctx, span := m.tel.startDispatchSpan(ctx, name, responseType.String(), hasResponse)
	started := time.Now()

	w, ok := m.pipelineFor(requestType, req)
	if !ok {
		rerr := &RoutingError{RequestType: name}
		m.tel.endSpan(span, rerr, false)
		m.tel.recordDispatch(ctx, name, statusError, time.Since(started), rerr)
		return result.Err[R](rerr), nil
	}

	var rc *RequestContext
	var out any
	var err error
	if len(w.intercepts) == 0 {
		// Горячий путь: контекст диспетчеризации не выделяется.
		out, err = w.entry.invoke(ctx, req)
	} else {
		rc = m.newRequestContext(ctx, req, w.typeName, started)
		out, err = w.invokeFrom(ctx, rc, 0)
	}
	duration := time.Since(started)

	var res result.Result[R]
	canceled := err != nil && isCancellation(err)
	switch {
	case canceled:
		m.tel.endSpan(span, err, true)
		m.tel.recordDispatch(ctx, name, statusCanceled, duration, nil)
		res = result.Err[R](err)
	case err != nil:
		m.tel.endSpan(span, err, false)
		m.tel.recordDispatch(ctx, name, statusError, duration, err)
		res = result.Err[R](err)
	default:
		typed, ok := out.(R)
		if !ok && out != nil {
			err = fmt.Errorf("обработчик запроса '%s' вернул значение типа %T, ожидался '%s'", name, out, responseType)
			m.tel.endSpan(span, err, false)
			m.tel.recordDispatch(ctx, name, statusError, duration, err)
			res = result.Err[R](err)
			break
		}
		m.tel.endSpan(span, nil, false)
		m.tel.recordDispatch(ctx, name, statusSuccess, duration, nil)
		res = result.Ok(typed)
	}

	if w.audited {
		// Холодная достройка контекста, если горячий путь его пропустил.
		if rc == nil {
			rc = m.newRequestContext(ctx, req, w.typeName, started)
		}
		m.publishAudit(ctx, rc, req, outcome(canceled, res.Err()), duration)
	}

	if canceled {
		return res, err
	}
	return res, nil
}

// DispatchVoid диспетчеризует запрос без ответа.
func DispatchVoid(ctx context.Context, m *Mediator, req Request[result.Void]) (result.Result[result.Void], error) {
	return Dispatch[result.Void](ctx, m, req)
}

// outcome классифицирует исход диспетчеризации для аудита.
func outcome(canceled bool, err error) string {
	switch {
	case canceled:
		return statusCanceled
	case err != nil:
		return statusError
	default:
		return statusSuccess
	}
}
