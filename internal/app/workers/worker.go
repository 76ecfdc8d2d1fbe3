package workers

import (
	"context"
	"log/slog"

	"francoggm/travelpay/internal/app/workers/processors"
)

type worker struct {
	id              int
	eventsCh        chan any
	eventsProcessor processors.Processor
	logger          *slog.Logger
}

func newWorker(id int, eventsCh chan any, eventsProcessor processors.Processor, logger *slog.Logger) *worker {
	return &worker{
		id:              id,
		eventsCh:        eventsCh,
		eventsProcessor: eventsProcessor,
		logger:          logger.With(slog.Int("worker_id", id)),
	}
}

// start drains the queue until ctx is done or the channel is closed. A failed
// event is logged and dropped; nothing is retried.
func (w *worker) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.eventsCh:
			if !ok {
				return
			}

			if err := w.eventsProcessor.ProcessEvent(ctx, event); err != nil {
				w.logger.Error("error processing event", slog.Any("error", err))
			}
		}
	}
}
