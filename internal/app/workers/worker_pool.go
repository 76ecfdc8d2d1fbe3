package workers

import (
	"context"
	"log/slog"
	"sync"

	"francoggm/travelpay/internal/app/workers/processors"
)

type WorkerPool struct {
	workers         []*worker
	eventsCh        chan any
	eventsProcessor processors.Processor
	wg              sync.WaitGroup
}

func NewWorkerPool(workersCount int, eventsCh chan any, eventsProcessor processors.Processor, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	var workers []*worker
	for id := range workersCount {
		worker := newWorker(id, eventsCh, eventsProcessor, logger)
		workers = append(workers, worker)
	}

	return &WorkerPool{
		workers:         workers,
		eventsCh:        eventsCh,
		eventsProcessor: eventsProcessor,
	}
}

func (w *WorkerPool) StartWorkers(ctx context.Context) {
	for _, worker := range w.workers {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			worker.start(ctx)
		}()
	}
}

// Wait blocks until every worker has returned.
func (w *WorkerPool) Wait() {
	w.wg.Wait()
}
