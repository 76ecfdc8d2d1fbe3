package processors

import (
	"context"
	"fmt"

	"francoggm/travelpay/internal/app/events"
	"francoggm/travelpay/internal/models"
)

type OutcomeProcessor struct {
	publisher events.Publisher
}

func NewOutcomeProcessor(publisher events.Publisher) *OutcomeProcessor {
	return &OutcomeProcessor{
		publisher: publisher,
	}
}

func (p *OutcomeProcessor) ProcessEvent(ctx context.Context, event any) error {
	outcome, ok := event.(*models.Outcome)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	return p.publisher.Publish(ctx, outcome)
}
