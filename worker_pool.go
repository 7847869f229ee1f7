package mediator

import "sync"

// workerPool — это пул горутин для выполнения отсоединенных задач стратегии
// FireAndForget. Задача, не поместившаяся в очередь, выполняется вызывающей
// стороной в отдельной горутине, поэтому пул никогда не блокирует публикацию.
type workerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// newWorkerPool создает пул с указанным числом воркеров и размером очереди.
func newWorkerPool(workers, queueSize int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &workerPool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		stopCh:  make(chan struct{}),
	}
}

// start запускает воркеров пула.
func (p *workerPool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop останавливает воркеров и дожидается их завершения. Задачи, уже
// находящиеся в очереди, дорабатываются до конца.
func (p *workerPool) stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// submit ставит задачу в очередь. Возвращает false, если пул остановлен
// или очередь заполнена; вызывающая сторона сама решает, что делать с задачей.
func (p *workerPool) submit(task func()) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// worker — основная функция горутины-воркера.
func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.stopCh:
			// Дорабатываем накопившуюся очередь перед выходом.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}
