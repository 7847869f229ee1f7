package mediator

// Strategy определяет семантику доставки уведомления его обработчикам.
type Strategy int

const (
	// Sequential выполняет обработчики по одному в порядке подписки;
	// отказ одного не останавливает остальных, все ошибки агрегируются.
	Sequential Strategy = iota
	// FailFast выполняет обработчики по одному и останавливается на первом
	// отказе; сообщается только эта ошибка.
	FailFast
	// Parallel запускает все обработчики конкурентно и возвращается только
	// после завершения каждого из них; все ошибки агрегируются.
	Parallel
	// FireAndForget возвращает успех сразу после постановки обработчиков
	// в очередь; их ошибки только логируются и никогда не доходят до
	// вызывающей стороны.
	FireAndForget
)

// String возвращает имя стратегии для логов и атрибутов телеметрии.
func (s Strategy) String() string {
	switch s {
	case FailFast:
		return "fail_fast"
	case Parallel:
		return "parallel"
	case FireAndForget:
		return "fire_and_forget"
	default:
		return "sequential"
	}
}

// Strategized — опциональный интерфейс типа уведомления, объявляющий
// стратегию доставки по умолчанию для этого типа.
type Strategized interface {
	PublishStrategy() Strategy
}

// PublishOption — это функциональная опция публикации.
type PublishOption func(*publishOptions)

type publishOptions struct {
	strategy *Strategy
}

// WithStrategy задает стратегию доставки для данной публикации, переопределяя
// стратегию типа уведомления и стратегию медиатора по умолчанию.
func WithStrategy(s Strategy) PublishOption {
	return func(o *publishOptions) {
		o.strategy = &s
	}
}

// resolveStrategy выбирает стратегию доставки: явный аргумент публикации,
// затем стратегия типа уведомления, затем стратегия медиатора по умолчанию.
func (m *Mediator) resolveStrategy(n any, o *publishOptions) Strategy {
	if o.strategy != nil {
		return *o.strategy
	}
	if s, ok := n.(Strategized); ok {
		return s.PublishStrategy()
	}
	return m.cfg.defaultStrategy
}
