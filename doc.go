// Package mediator реализует внутрипроцессный медиатор запросов и уведомлений.
//
// Вызывающая сторона отправляет типизированный запрос (команду или выборку)
// через Dispatch и получает единообразный result.Result, либо публикует
// уведомление через Publish, доставляемое всем подписчикам по одной из
// четырех стратегий. Медиатор сам находит зарегистрированный обработчик по
// типу запроса во время выполнения, проводит вызов через упорядоченную
// цепочку перехватчиков (валидация, авторизация, произвольная сквозная
// логика) и оборачивает каждую операцию телеметрией OpenTelemetry и,
// для помеченных запросов, аудит-уведомлением.
//
// Конвейер для каждого конкретного типа запроса собирается один раз при
// первой диспетчеризации и кешируется: повторные вызовы не платят за
// рефлексию и не выделяют контекст вызова, если перехватчики отсутствуют.
package mediator
