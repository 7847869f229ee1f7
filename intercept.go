package mediator

import (
	"context"
	"fmt"

	"github.com/goccy/go-reflect"
)

// Next — это продолжение цепочки перехватчиков: вызов остатка цепочки
// вплоть до терминального обработчика.
type Next func() (any, error)

// Intercept определяет контракт перехватчика — сквозного звена, оборачивающего
// выполнение обработчика. Перехватчик может не вызывать next (короткое
// замыкание до обработчика), преобразовать результат next или выполнить
// завершающую логику независимо от исхода. Перехватчики регистрируются
// централизованно опцией WithIntercepts и применяются ко всем типам запросов,
// к которым они применимы, в порядке регистрации.
type Intercept interface {
	Handle(ctx context.Context, rc *RequestContext, next Next) (any, error)
}

// InterceptFunc является адаптером, позволяющим использовать обычные функции
// как перехватчики.
type InterceptFunc func(ctx context.Context, rc *RequestContext, next Next) (any, error)

// Handle реализует интерфейс Intercept.
func (f InterceptFunc) Handle(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	return f(ctx, rc, next)
}

// applicable — опциональный интерфейс перехватчика, ограничивающий его
// применимость конкретными типами запросов. Перехватчик без этого интерфейса
// применяется ко всем запросам.
type applicable interface {
	appliesTo(requestType reflect.Type) bool
}

// applicableIntercepts отбирает перехватчики, применимые к типу запроса.
// Отбор выполняется один раз при сборке конвейера типа, не на каждый вызов.
func applicableIntercepts(all []Intercept, requestType reflect.Type) []Intercept {
	matched := make([]Intercept, 0, len(all))
	for _, ic := range all {
		if a, ok := ic.(applicable); ok && !a.appliesTo(requestType) {
			continue
		}
		matched = append(matched, ic)
	}
	return matched
}

// Typed адаптирует строго типизированную функцию-перехватчик к контракту
// Intercept. Полученный перехватчик применяется только к запросам конкретного
// типа Q; для остальных типов он не попадает в конвейер вовсе.
func Typed[Q Request[R], R any](f func(ctx context.Context, rc *RequestContext, q Q, next func() (R, error)) (R, error)) Intercept {
	return &typedIntercept[Q, R]{
		f:           f,
		requestType: reflect.TypeOf((*Q)(nil)).Elem(),
	}
}

// typedIntercept — это обертка, восстанавливающая статическую типизацию
// поверх нетипизированной цепочки.
type typedIntercept[Q Request[R], R any] struct {
	f           func(ctx context.Context, rc *RequestContext, q Q, next func() (R, error)) (R, error)
	requestType reflect.Type
}

// appliesTo реализует интерфейс applicable.
func (t *typedIntercept[Q, R]) appliesTo(requestType reflect.Type) bool {
	return requestType == t.requestType
}

// Handle реализует интерфейс Intercept.
func (t *typedIntercept[Q, R]) Handle(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	q, ok := rc.Request.(Q)
	if !ok {
		return next()
	}

	typedNext := func() (R, error) {
		out, err := next()
		if err != nil {
			var zero R
			return zero, err
		}
		if out == nil {
			var zero R
			return zero, nil
		}
		r, ok := out.(R)
		if !ok {
			var zero R
			return zero, fmt.Errorf("продолжение цепочки для запроса '%s' вернуло значение типа %T, ожидался '%s'",
				rc.RequestType, out, reflect.TypeOf((*R)(nil)).Elem())
		}
		return r, nil
	}

	return t.f(ctx, rc, q, typedNext)
}
