package mediator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RoutingError означает, что для типа запроса не зарегистрирован ни один
// обработчик. Ошибка возвращается внутри неуспешного Result и никогда
// не приводит к панике.
type RoutingError struct {
	RequestType string
}

// Error реализует интерфейс error.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("обработчик для запроса '%s' не зарегистрирован", e.RequestType)
}

// ValidationError означает, что запрос не прошел структурную валидацию
// и не был передан обработчику.
type ValidationError struct {
	RequestType string
	Err         error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("запрос '%s' не прошел валидацию: %v", e.RequestType, e.Err)
}

// Unwrap возвращает исходную ошибку валидации.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthorizationError означает, что принципал вызова не обладает ролью,
// необходимой для выполнения запроса.
type AuthorizationError struct {
	RequestType string
	Subject     string
	Roles       []string
}

// Error реализует интерфейс error.
func (e *AuthorizationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("запрос '%s' требует аутентифицированного принципала", e.RequestType)
	}
	return fmt.Sprintf("принципал '%s' не имеет ни одной из ролей %v, необходимых для запроса '%s'",
		e.Subject, e.Roles, e.RequestType)
}

// HandlerError связывает ошибку с именем обработчика уведомления,
// который ее вернул.
type HandlerError struct {
	Handler string
	Err     error
}

// Error реализует интерфейс error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("обработчик '%s': %v", e.Handler, e.Err)
}

// Unwrap возвращает исходную ошибку обработчика.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// AggregateError агрегирует ошибки обработчиков одного уведомления.
// Используется стратегиями Sequential и Parallel; стратегия FailFast
// всегда несет ровно одну ошибку.
type AggregateError struct {
	NotificationType string
	Errors           []*HandlerError
}

// Error реализует интерфейс error.
func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, he := range e.Errors {
		parts = append(parts, he.Error())
	}
	return fmt.Sprintf("уведомление '%s': %d из обработчиков завершились ошибкой: %s",
		e.NotificationType, len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap возвращает все ошибки обработчиков для errors.Is и errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, he := range e.Errors {
		errs = append(errs, he)
	}
	return errs
}

// isCancellation сообщает, является ли ошибка кооперативной отменой.
// Отмена не конвертируется в неуспешный Result, а возвращается вызывающей
// стороне отдельным значением.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
