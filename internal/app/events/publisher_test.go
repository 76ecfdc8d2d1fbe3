package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"francoggm/travelpay/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOutcome() *models.Outcome {
	return &models.Outcome{
		AttemptID:   "attempt-1",
		Kind:        models.KindTicket,
		Provider:    models.ProviderCard,
		Status:      models.StatusSucceeded,
		Amount:      19998,
		Currency:    "USD",
		Reference:   "tok_1",
		CompletedAt: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	var sent *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	publisher := NewKafkaPublisher(producer, "checkout_outcomes")
	require.NoError(t, publisher.Publish(context.Background(), testOutcome()))
	require.NoError(t, publisher.Close())

	require.NotNil(t, sent)
	assert.Equal(t, "checkout_outcomes", sent.Topic)

	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", string(key))

	value, err := sent.Value.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(value, &decoded))
	assert.Equal(t, "checkout.succeeded", decoded["type"])
	assert.Equal(t, "attempt-1", decoded["attemptId"])
	assert.Equal(t, 199.98, decoded["amount"])
}

func TestKafkaPublisher_SendFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	publisher := NewKafkaPublisher(producer, "checkout_outcomes")
	err := publisher.Publish(context.Background(), testOutcome())
	assert.ErrorContains(t, err, "broker down")

	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisher(producer, "checkout_outcomes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, publisher.Publish(ctx, testOutcome()), context.Canceled)
	require.NoError(t, publisher.Close())
}

func TestLogPublisher(t *testing.T) {
	publisher := NewLogPublisher(nil)
	assert.NoError(t, publisher.Publish(context.Background(), testOutcome()))
	assert.NoError(t, publisher.Close())
}
