package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingProcessor struct {
	mu       sync.Mutex
	seen     []any
	failures int
}

func (p *recordingProcessor) ProcessEvent(_ context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, event)
	if p.failures > 0 {
		p.failures--
		return errors.New("publish failed")
	}

	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.seen)
}

func TestWorkerPool_ProcessesEvents(t *testing.T) {
	eventsCh := make(chan any, 10)
	processor := &recordingProcessor{}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(3, eventsCh, processor, nil)
	pool.StartWorkers(ctx)

	for i := range 5 {
		eventsCh <- i
	}

	assert.Eventually(t, func() bool { return processor.count() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	pool.Wait()
}

func TestWorkerPool_DropsFailedEvents(t *testing.T) {
	eventsCh := make(chan any, 10)
	processor := &recordingProcessor{failures: 1}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(1, eventsCh, processor, nil)
	pool.StartWorkers(ctx)

	eventsCh <- "outcome"
	assert.Eventually(t, func() bool { return processor.count() == 1 }, time.Second, 5*time.Millisecond)

	close(eventsCh)
	pool.Wait()
	assert.Equal(t, 1, processor.count())
}
