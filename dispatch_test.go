package mediator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/mediator"
	"github.com/x-research-team/mediator/result"
)

// Тестовый запрос с ответом.
type greetQuery struct {
	Name string
}

// Тестовый запрос без ответа.
type pingCommand struct {
	Target string
}

// Тестовый запрос без зарегистрированного обработчика.
type orphanQuery struct{}

// Тест успешной диспетчеризации запроса с ответом.
func TestDispatch_Success(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "привет, " + q.Name, nil
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})

	require.NoError(t, err, "Диспетчеризация не должна возвращать ошибку")
	require.True(t, res.IsSuccess(), "Результат должен быть успешным")
	assert.Equal(t, "привет, мир", res.Value(), "Значение ответа некорректно")
}

// Тест диспетчеризации запроса без обработчика: отсутствие обработчика —
// это неуспешный Result, а не ошибка и не паника.
func TestDispatch_NoHandler(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, orphanQuery{})

	require.NoError(t, err, "Отсутствие обработчика не должно возвращаться как ошибка")
	require.True(t, res.IsFailure(), "Результат должен быть неуспешным")

	var routing *mediator.RoutingError
	require.ErrorAs(t, res.Err(), &routing, "Ошибка результата должна быть RoutingError")
	assert.Equal(t, "orphanQuery", routing.RequestType, "Тип запроса в ошибке некорректен")
}

// Тест ошибки при повторной регистрации обработчика для того же типа запроса.
func TestRegisterHandler_AlreadyRegistered(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	handler := func(ctx context.Context, q greetQuery) (string, error) {
		return "", nil
	}

	err = mediator.RegisterHandler(m, handler)
	require.NoError(t, err, "Первая регистрация обработчика не должна вызывать ошибку")

	err = mediator.RegisterHandler(m, handler)
	require.Error(t, err, "Повторная регистрация обработчика должна вызывать ошибку")
	assert.Contains(t, err.Error(), "уже зарегистрирован", "Текст ошибки должен сообщать о повторной регистрации")
}

// Тест ошибки при регистрации nil-обработчика.
func TestRegisterHandler_Nil(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler[greetQuery, string](m, nil)
	require.Error(t, err, "Регистрация nil-обработчика должна вызывать ошибку")
}

// Тест бизнес-ошибки обработчика: она возвращается внутри неуспешного Result.
func TestDispatch_HandlerError(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	cause := errors.New("имя не найдено")
	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "", cause
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "никто"})

	require.NoError(t, err, "Бизнес-ошибка не должна возвращаться второй ошибкой")
	require.True(t, res.IsFailure(), "Результат должен быть неуспешным")
	assert.ErrorIs(t, res.Err(), cause, "Результат должен нести исходную ошибку обработчика")
}

// Тест диспетчеризации nil-запроса.
func TestDispatch_NilRequest(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, nil)

	require.NoError(t, err, "nil-запрос не должен возвращаться второй ошибкой")
	assert.True(t, res.IsFailure(), "Результат для nil-запроса должен быть неуспешным")
}

// Тест диспетчеризации запроса без ответа.
func TestDispatchVoid_Success(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	handled := false
	err = mediator.RegisterVoidHandler(m, func(ctx context.Context, cmd pingCommand) error {
		handled = true
		return nil
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	res, err := mediator.DispatchVoid(context.Background(), m, pingCommand{Target: "узел-1"})

	require.NoError(t, err, "Диспетчеризация не должна возвращать ошибку")
	assert.True(t, res.IsSuccess(), "Результат должен быть успешным")
	assert.True(t, handled, "Обработчик должен быть вызван")
}

// Тест кооперативной отмены: отмена не конвертируется в Result,
// а возвращается вызывающей стороне отдельным значением.
func TestDispatch_Cancellation(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := mediator.Dispatch[string](ctx, m, greetQuery{Name: "мир"})

	require.Error(t, err, "Отмена должна возвращаться отдельной ошибкой")
	assert.ErrorIs(t, err, context.Canceled, "Ошибка должна быть ошибкой отмены контекста")
	assert.True(t, res.IsFailure(), "Результат при отмене должен быть неуспешным")
}

// Тест двух независимых типов запросов на одном медиаторе.
func TestDispatch_MultipleRequestTypes(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "привет, " + q.Name, nil
	})
	require.NoError(t, err, "Регистрация первого обработчика не должна вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, cmd pingCommand) (result.Void, error) {
		return result.Void{}, nil
	})
	require.NoError(t, err, "Регистрация второго обработчика не должна вызывать ошибку")

	greet, err := mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})
	require.NoError(t, err, "Диспетчеризация первого запроса не должна возвращать ошибку")
	assert.Equal(t, "привет, мир", greet.Value(), "Ответ первого запроса некорректен")

	ping, err := mediator.DispatchVoid(context.Background(), m, pingCommand{Target: "узел-1"})
	require.NoError(t, err, "Диспетчеризация второго запроса не должна возвращать ошибку")
	assert.True(t, ping.IsSuccess(), "Результат второго запроса должен быть успешным")
}
