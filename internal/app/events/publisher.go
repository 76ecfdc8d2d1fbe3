// Package events publishes checkout outcomes for downstream consumers.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"francoggm/travelpay/internal/models"

	"github.com/IBM/sarama"
	"github.com/bytedance/sonic"
)

type Publisher interface {
	Publish(ctx context.Context, outcome *models.Outcome) error
	Close() error
}

// outcomeEvent is the message body written to the topic.
type outcomeEvent struct {
	Type string `json:"type"`
	*models.Outcome
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish keys the message by attempt id so every outcome of one attempt
// lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, outcome *models.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := sonic.Marshal(outcomeEvent{Type: "checkout." + string(outcome.Status), Outcome: outcome})
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(outcome.AttemptID),
		Value: sarama.ByteEncoder(body),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish outcome %s: %w", outcome.AttemptID, err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher is used when no brokers are configured. Outcomes only reach
// the log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, outcome *models.Outcome) error {
	p.logger.InfoContext(ctx, "checkout outcome",
		slog.String("attempt_id", outcome.AttemptID),
		slog.String("status", string(outcome.Status)),
		slog.String("amount", outcome.Amount.String()),
		slog.String("currency", outcome.Currency),
	)

	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
