package mediator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// config содержит неэкспортируемую конфигурацию медиатора.
// Это позволяет добавлять новые опции без изменения публичного API.
type config struct {
	logger          *slog.Logger
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
	intercepts      []Intercept
	defaultStrategy Strategy
	workerCount     int
	queueSize       int
}

// Option определяет тип для функциональных опций, которые изменяют
// конфигурацию медиатора.
type Option func(*config)

// WithLogger возвращает опцию, которая устанавливает логгер медиатора.
// Логгер используется только для сбоев побочных путей (fire-and-forget,
// аудит); на успешном пути диспетчеризации медиатор не логирует.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTracerProvider возвращает опцию, которая устанавливает провайдер
// трассировки. Без провайдера спаны не создаются.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = provider
	}
}

// WithMeterProvider возвращает опцию, которая устанавливает провайдер метрик.
// Без провайдера счетчики и гистограммы не записываются.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = provider
	}
}

// WithIntercepts возвращает опцию, которая добавляет перехватчики в цепочку.
// Перехватчики выполняются в порядке добавления на входе и в обратном
// порядке на выходе; последний добавленный оказывается ближе всех к
// обработчику.
func WithIntercepts(intercepts ...Intercept) Option {
	return func(c *config) {
		c.intercepts = append(c.intercepts, intercepts...)
	}
}

// WithDefaultStrategy возвращает опцию, которая устанавливает стратегию
// доставки уведомлений по умолчанию. Без опции используется Sequential.
func WithDefaultStrategy(s Strategy) Option {
	return func(c *config) {
		c.defaultStrategy = s
	}
}

// WithWorkerPool настраивает пул горутин для отсоединенных обработчиков
// стратегии FireAndForget.
func WithWorkerPool(workers, queueSize int) Option {
	return func(c *config) {
		c.workerCount = workers
		c.queueSize = queueSize
	}
}

// Mediator — это контейнер диспетчеризации и публикации. Любое количество
// вызовов может выполняться конкурентно: каждый вызов владеет собственным
// контекстом и состоянием цепочки, единственная разделяемая изменяемая
// структура — кеши конвейеров и подписок.
type Mediator struct {
	cfg *config
	tel *instruments

	mu          sync.RWMutex
	handlers    map[reflect.Type]*handlerEntry
	subscribers map[reflect.Type][]*subscription

	// pipelines кеширует собранные конвейеры по типу запроса.
	pipelines sync.Map
	// subsCache кеширует снимки подписок по типу уведомления.
	subsCache sync.Map

	pool     *workerPool
	detached sync.WaitGroup

	// contextBuilds считает построения RequestContext; инвариант горячего
	// пути (ноль построений без перехватчиков) проверяется по нему.
	contextBuilds atomic.Int64
}

// New создает новый, готовый к использованию экземпляр медиатора.
func New(opts ...Option) (*Mediator, error) {
	cfg := &config{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultStrategy: Sequential,
		workerCount:     4,
		queueSize:       64,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tel, err := newInstruments(cfg.tracerProvider, cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать инструменты телеметрии: %w", err)
	}

	pool := newWorkerPool(cfg.workerCount, cfg.queueSize)
	pool.start()

	return &Mediator{
		cfg:         cfg,
		tel:         tel,
		handlers:    make(map[reflect.Type]*handlerEntry),
		subscribers: make(map[reflect.Type][]*subscription),
		pool:        pool,
	}, nil
}

// Shutdown дожидается завершения всех отсоединенных обработчиков и
// останавливает пул воркеров. При истечении контекста возвращается его
// ошибка; фоновые задачи при этом продолжают дорабатывать самостоятельно.
func (m *Mediator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.detached.Wait()
		m.pool.stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// typeName возвращает короткое имя конкретного типа для логов, метрик и
// текстов ошибок.
func typeName(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
