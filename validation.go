package mediator

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

// validationIntercept проверяет запрос по его struct-тегам `validate` до
// передачи обработчику. Невалидный запрос никогда не достигает обработчика:
// перехватчик замыкает цепочку и возвращает ValidationError.
type validationIntercept struct {
	validate *validator.Validate
}

// NewValidationIntercept создает перехватчик структурной валидации запросов.
// Если экземпляр валидатора не передан (nil), создается валидатор со
// включенной проверкой required для вложенных структур. Запросы, не
// являющиеся структурами, пропускаются без проверки.
func NewValidationIntercept(validate *validator.Validate) Intercept {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &validationIntercept{validate: validate}
}

// Handle реализует интерфейс Intercept.
func (i *validationIntercept) Handle(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	if err := i.validate.StructCtx(ctx, rc.Request); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Не структура — валидация к такому запросу неприменима.
			return next()
		}
		return nil, &ValidationError{RequestType: rc.RequestType, Err: err}
	}
	return next()
}
