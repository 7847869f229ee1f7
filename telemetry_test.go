package mediator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/x-research-team/mediator"
)

// collectMetrics собирает накопленные метрики из ридера в карту по именам.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm), "Сбор метрик не должен вызывать ошибку")

	collected := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			collected[metric.Name] = metric
		}
	}
	return collected
}

// counterValue возвращает суммарное значение счетчика по всем наборам атрибутов.
func counterValue(m metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// Тест метрик диспетчеризации: каждый вызов фиксируется счетчиком
// и гистограммой длительности.
func TestTelemetry_DispatchMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := mediator.New(mediator.WithMeterProvider(provider))
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "привет", nil
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	_, err = mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})
	require.NoError(t, err, "Успешная диспетчеризация не должна возвращать ошибку")

	_, err = mediator.Dispatch[string](context.Background(), m, orphanQuery{})
	require.NoError(t, err, "Диспетчеризация без обработчика не должна возвращать ошибку")

	collected := collectMetrics(t, reader)

	counter, ok := collected["mediator.dispatch.count"]
	require.True(t, ok, "Счетчик диспетчеризаций должен быть зарегистрирован")
	assert.Equal(t, int64(2), counterValue(counter), "Обе диспетчеризации должны быть зафиксированы")

	_, ok = collected["mediator.dispatch.duration"]
	assert.True(t, ok, "Гистограмма длительности диспетчеризации должна быть зарегистрирована")
}

// Тест метрик публикации и потребления уведомлений.
func TestTelemetry_PublishMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := mediator.New(mediator.WithMeterProvider(provider))
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	_, err = mediator.Subscribe(m, func(ctx context.Context, n orderPlaced) error {
		return nil
	})
	require.NoError(t, err, "Первая подписка не должна вызывать ошибку")

	_, err = mediator.Subscribe(m, func(ctx context.Context, n orderPlaced) error {
		return errors.New("сбой")
	})
	require.NoError(t, err, "Вторая подписка не должна вызывать ошибку")

	_, err = mediator.Publish(context.Background(), m, orderPlaced{OrderID: "A-1"})
	require.NoError(t, err, "Публикация не должна возвращать ошибку")

	collected := collectMetrics(t, reader)

	publish, ok := collected["mediator.publish.count"]
	require.True(t, ok, "Счетчик публикаций должен быть зарегистрирован")
	assert.Equal(t, int64(1), counterValue(publish), "Публикация должна быть зафиксирована один раз")

	consume, ok := collected["mediator.consume.count"]
	require.True(t, ok, "Счетчик вызовов обработчиков должен быть зарегистрирован")
	assert.Equal(t, int64(2), counterValue(consume), "Каждый вызов обработчика должен быть зафиксирован")
}

// Тест спанов: диспетчеризация и публикация открывают и закрывают по
// одному спану, отказы помечаются исходом.
func TestTelemetry_Spans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	m, err := mediator.New(mediator.WithTracerProvider(provider))
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "привет", nil
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	_, err = mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})
	require.NoError(t, err, "Диспетчеризация не должна возвращать ошибку")

	_, err = mediator.Publish(context.Background(), m, orderPlaced{OrderID: "A-1"})
	require.NoError(t, err, "Публикация не должна возвращать ошибку")

	spans := recorder.Ended()
	require.Len(t, spans, 2, "Должно быть закрыто ровно два спана")

	names := []string{spans[0].Name(), spans[1].Name()}
	assert.Contains(t, names, "greetQuery dispatch", "Спан диспетчеризации должен быть именован по типу запроса")
	assert.Contains(t, names, "orderPlaced publish", "Спан публикации должен быть именован по типу уведомления")
}

// Тест закрытия спана при отказе: спан закрывается ровно один раз
// и несет записанную ошибку.
func TestTelemetry_SpanOnFailure(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	m, err := mediator.New(mediator.WithTracerProvider(provider))
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "", errors.New("сбой обработчика")
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})
	require.NoError(t, err, "Бизнес-ошибка не должна возвращаться второй ошибкой")
	require.True(t, res.IsFailure(), "Результат должен быть неуспешным")

	spans := recorder.Ended()
	require.Len(t, spans, 1, "Спан должен быть закрыт ровно один раз")
	assert.NotEmpty(t, spans[0].Events(), "Спан отказа должен нести записанную ошибку")
}

// Тест телеметрии отмены: отмененная диспетчеризация фиксируется со статусом
// canceled ровно один раз.
func TestTelemetry_CanceledRecordedOnce(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := mediator.New(mediator.WithMeterProvider(provider))
	require.NoError(t, err, "Создание медиатора не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = mediator.Dispatch[string](ctx, m, greetQuery{Name: "мир"})
	require.ErrorIs(t, err, context.Canceled, "Отмена должна возвращаться отдельной ошибкой")

	collected := collectMetrics(t, reader)
	counter, ok := collected["mediator.dispatch.count"]
	require.True(t, ok, "Счетчик диспетчеризаций должен быть зарегистрирован")

	sum, ok := counter.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Счетчик должен быть суммой int64")

	canceled := int64(0)
	for _, dp := range sum.DataPoints {
		if status, ok := dp.Attributes.Value("status"); ok && status.AsString() == "canceled" {
			canceled += dp.Value
		}
	}
	assert.Equal(t, int64(1), canceled, "Отмена должна быть зафиксирована ровно один раз")
}

// Тест отключенной телеметрии: без провайдеров диспетчеризация и публикация
// работают без какой-либо записи.
func TestTelemetry_Disabled(t *testing.T) {
	t.Parallel()

	m, err := mediator.New()
	require.NoError(t, err, "Создание медиатора без провайдеров не должно вызывать ошибку")

	err = mediator.RegisterHandler(m, func(ctx context.Context, q greetQuery) (string, error) {
		return "привет", nil
	})
	require.NoError(t, err, "Регистрация обработчика не должна вызывать ошибку")

	res, err := mediator.Dispatch[string](context.Background(), m, greetQuery{Name: "мир"})
	require.NoError(t, err, "Диспетчеризация без телеметрии не должна возвращать ошибку")
	assert.True(t, res.IsSuccess(), "Результат должен быть успешным")
}
