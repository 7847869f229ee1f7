package mediator

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/mediator"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "mediator."

	statusSuccess   = "success"
	statusError     = "error"
	statusCanceled  = "canceled"
	statusUnhandled = "unhandled"
)

// instruments — это процессный набор инструментов телеметрии, создаваемый
// один раз при конструировании медиатора и передаваемый по ссылке в
// диспетчеризацию и публикацию. Нулевые провайдеры отключают соответствующий
// канал телеметрии; методы записи безопасны при отключенных инструментах и
// никогда не влияют на результат, возвращаемый вызывающей стороне.
type instruments struct {
	tracer           trace.Tracer
	dispatchCounter  metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	publishCounter   metric.Int64Counter
	publishDuration  metric.Float64Histogram
	consumeCounter   metric.Int64Counter
	consumeDuration  metric.Float64Histogram
}

// newInstruments создает набор инструментов из сконфигурированных провайдеров.
func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	ins := &instruments{}

	if tp != nil {
		ins.tracer = tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		)
	}

	if mp == nil {
		return ins, nil
	}
	meter := mp.Meter(instrumentationName)

	var err error
	ins.dispatchCounter, err = meter.Int64Counter(
		metricKeyPrefix+"dispatch.count",
		metric.WithDescription("Количество диспетчеризованных запросов"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик dispatch.count: %w", err)
	}

	ins.dispatchDuration, err = meter.Float64Histogram(
		metricKeyPrefix+"dispatch.duration",
		metric.WithDescription("Длительность диспетчеризации запроса"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать гистограмму dispatch.duration: %w", err)
	}

	ins.publishCounter, err = meter.Int64Counter(
		metricKeyPrefix+"publish.count",
		metric.WithDescription("Количество опубликованных уведомлений"),
		metric.WithUnit("{notifications}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик publish.count: %w", err)
	}

	ins.publishDuration, err = meter.Float64Histogram(
		metricKeyPrefix+"publish.duration",
		metric.WithDescription("Длительность публикации уведомления"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать гистограмму publish.duration: %w", err)
	}

	ins.consumeCounter, err = meter.Int64Counter(
		metricKeyPrefix+"consume.count",
		metric.WithDescription("Количество вызовов обработчиков уведомлений"),
		metric.WithUnit("{handlers}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик consume.count: %w", err)
	}

	ins.consumeDuration, err = meter.Float64Histogram(
		metricKeyPrefix+"consume.duration",
		metric.WithDescription("Длительность обработки уведомления одним обработчиком"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать гистограмму consume.duration: %w", err)
	}

	return ins, nil
}

// startDispatchSpan открывает спан диспетчеризации запроса.
func (t *instruments) startDispatchSpan(ctx context.Context, requestType, responseType string, hasResponse bool) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, nil
	}
	return t.tracer.Start(ctx, requestType+" dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("request.type", requestType),
			attribute.String("response.type", responseType),
			attribute.Bool("response.expected", hasResponse),
		),
	)
}

// startPublishSpan открывает спан публикации уведомления.
func (t *instruments) startPublishSpan(ctx context.Context, notificationType, strategy string) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, nil
	}
	return t.tracer.Start(ctx, notificationType+" publish",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("notification.type", notificationType),
			attribute.String("strategy", strategy),
		),
	)
}

// endSpan закрывает спан ровно один раз, помечая исход.
func (t *instruments) endSpan(span trace.Span, err error, canceled bool) {
	if span == nil {
		return
	}
	switch {
	case canceled:
		span.SetAttributes(attribute.String("outcome", statusCanceled))
	case err != nil:
		span.RecordError(err)
		span.SetAttributes(
			attribute.String("outcome", statusError),
			attribute.String("error.type", errorType(err)),
		)
	default:
		span.SetAttributes(attribute.String("outcome", statusSuccess))
	}
	span.End()
}

// recordDispatch фиксирует счетчик и длительность одной диспетчеризации.
func (t *instruments) recordDispatch(ctx context.Context, requestType, status string, d time.Duration, err error) {
	if t.dispatchCounter == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("request.type", requestType),
		attribute.String("status", status),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.type", errorType(err)))
	}
	opt := metric.WithAttributes(attrs...)

	t.dispatchCounter.Add(ctx, 1, opt)
	t.dispatchDuration.Record(ctx, durationMs(d), opt)
}

// recordPublish фиксирует счетчик и длительность одной публикации.
func (t *instruments) recordPublish(ctx context.Context, notificationType string, strategy Strategy, status string, d time.Duration) {
	if t.publishCounter == nil {
		return
	}

	opt := metric.WithAttributes(
		attribute.String("notification.type", notificationType),
		attribute.String("strategy", strategy.String()),
		attribute.String("status", status),
	)

	t.publishCounter.Add(ctx, 1, opt)
	t.publishDuration.Record(ctx, durationMs(d), opt)
}

// recordConsume фиксирует вызов одного обработчика уведомления.
func (t *instruments) recordConsume(ctx context.Context, notificationType, handlerName string, err error, d time.Duration) {
	if t.consumeCounter == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	opt := metric.WithAttributes(
		attribute.String("notification.type", notificationType),
		attribute.String("handler.name", handlerName),
		attribute.String("status", status),
	)

	t.consumeCounter.Add(ctx, 1, opt)
	t.consumeDuration.Record(ctx, durationMs(d), opt)
}

// durationMs переводит длительность в миллисекунды для гистограмм.
func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / float64(time.Millisecond)
}

// errorType возвращает имя типа ошибки для атрибутов телеметрии.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	return reflect.TypeOf(err).String()
}
