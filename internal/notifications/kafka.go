package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"stallbook/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaConfig contains configuration for the Kafka notifier
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	ClientID         string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	Compression      sarama.CompressionCodec
	IdempotentWrites bool
}

func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "stall-notifications",
		ClientID:         "stallbook-backend",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		Compression:      sarama.CompressionSnappy,
		IdempotentWrites: true,
	}
}

// KafkaNotifier publishes events to a topic keyed by user so one user's
// events stay ordered on a single partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

func NewKafkaNotifier(cfg *KafkaConfig) (*KafkaNotifier, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = cfg.RequiredAcks
	saramaConfig.Producer.Compression = cfg.Compression
	saramaConfig.Producer.Retry.Max = cfg.RetryMax
	saramaConfig.Producer.Timeout = cfg.Timeout
	saramaConfig.Producer.Idempotent = cfg.IdempotentWrites
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, cfg.Topic), nil
}

func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, log: logger.GetDefault()}
}

func (k *KafkaNotifier) Push(ctx context.Context, userID string, event Event) error {
	payload, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(userID),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headersFor(event),
		Timestamp: event.CreatedAt,
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	k.log.DebugWithContext(ctx, "notification published", map[string]interface{}{
		"topic":     k.topic,
		"partition": partition,
		"offset":    offset,
		"type":      string(event.Type),
		"user_id":   userID,
	})
	return nil
}

func headersFor(event Event) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("priority"), Value: []byte(event.Priority)},
		{Key: []byte("producer"), Value: []byte("stallbook-notifications")},
	}
	if key := event.StallKey(); key != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("stall_key"), Value: []byte(key)})
	}
	if event.TicketID != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("ticket_id"), Value: []byte(event.TicketID)})
	}
	if event.BookingID != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("booking_id"), Value: []byte(event.BookingID)})
	}
	if event.Position > 0 {
		headers = append(headers, sarama.RecordHeader{Key: []byte("position"), Value: []byte(strconv.Itoa(event.Position))})
	}
	if event.ExpiresAt != nil {
		headers = append(headers, sarama.RecordHeader{Key: []byte("expires_at"), Value: []byte(event.ExpiresAt.Format(time.RFC3339))})
	}
	return headers
}

func (k *KafkaNotifier) Close() error {
	if k.producer == nil {
		return nil
	}
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
