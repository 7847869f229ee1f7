// Package result определяет универсальный контейнер Result[T] —
// размеченное объединение «успех со значением» / «неудача с ошибкой».
// Result является единым возвращаемым контрактом для всех операций
// медиатора: бизнес-ошибки переносятся внутри Result, а не через panic
// или отдельные каналы.
package result

import "fmt"

// Void представляет собой пустой тип ответа для запросов, не возвращающих значения.
type Void struct{}

// Result представляет собой результат операции: либо успех со значением типа T,
// либо неудачу с ошибкой. Инвариант: Result никогда не является одновременно
// успехом и неудачей.
type Result[T any] struct {
	value T
	err   error
}

// Ok создает успешный результат со значением value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err создает неуспешный результат с ошибкой err.
// Нулевая ошибка недопустима: в этом случае создается ошибка-заглушка,
// чтобы инвариант «неудача всегда несет ошибку» сохранялся.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("result: неуспешный результат создан без ошибки")
	}
	return Result[T]{err: err}
}

// OkVoid создает успешный результат без значения.
func OkVoid() Result[Void] {
	return Ok(Void{})
}

// ErrVoid создает неуспешный результат без значения.
func ErrVoid(err error) Result[Void] {
	return Err[Void](err)
}

// IsSuccess сообщает, является ли результат успешным.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure сообщает, является ли результат неуспешным.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

// Value возвращает значение успешного результата.
// Для неуспешного результата возвращается нулевое значение типа T.
func (r Result[T]) Value() T {
	return r.value
}

// Err возвращает ошибку неуспешного результата или nil для успешного.
func (r Result[T]) Err() error {
	return r.err
}

// ValueOr возвращает значение успешного результата либо fallback для неуспешного.
func (r Result[T]) ValueOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// Unpack возвращает пару (значение, ошибка) для идиоматичной работы в Go.
func (r Result[T]) Unpack() (T, error) {
	return r.value, r.err
}

// String возвращает строковое представление результата для логирования.
func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("Failure(%v)", r.err)
	}
	return fmt.Sprintf("Success(%v)", r.value)
}

// Map применяет функцию f к значению успешного результата.
// Неуспешный результат проходит насквозь без вызова f: композиция
// останавливается на первой ошибке.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(f(r.value))
}

// Then применяет функцию f, которая сама может завершиться неудачей,
// к значению успешного результата. Неуспешный результат проходит насквозь.
func Then[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return f(r.value)
}
