package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

type Producer interface {
	PublishSeatStatusChanged(ctx context.Context, event SeatStatusChangedEvent) error
	PublishQueueEntered(ctx context.Context, event QueueEnteredEvent) error
	PublishQueueExpired(ctx context.Context, event QueueExpiredEvent) error
	PublishEventStatusChanged(ctx context.Context, event EventStatusChangedEvent) error
	PublishPaymentCompleted(ctx context.Context, event PaymentCompletedEvent) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
	l        logger.Logger
}

func NewProducer(producer sarama.SyncProducer, l logger.Logger) Producer {
	return &kafkaProducer{
		producer: producer,
		l:        l,
	}
}

func (p *kafkaProducer) PublishSeatStatusChanged(ctx context.Context, event SeatStatusChangedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, TopicSeatStatusChanged, event.EventID, event)
}

func (p *kafkaProducer) PublishQueueEntered(ctx context.Context, event QueueEnteredEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, TopicQueueEntered, event.EventID, event)
}

func (p *kafkaProducer) PublishQueueExpired(ctx context.Context, event QueueExpiredEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, TopicQueueExpired, event.EventID, event)
}

func (p *kafkaProducer) PublishEventStatusChanged(ctx context.Context, event EventStatusChangedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, TopicEventStatusChanged, event.EventID, event)
}

func (p *kafkaProducer) PublishPaymentCompleted(ctx context.Context, event PaymentCompletedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, TopicPaymentCompleted, event.EventID, event)
}

func (p *kafkaProducer) publish(ctx context.Context, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key), // Partition by event_id for ordering
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		p.l.Errorf(ctx, "kafkaProducer.publish: topic=%s: %v", topic, err)
		return fmt.Errorf("failed to send kafka message: %w", err)
	}

	p.l.Debugf(ctx, "Kafka message sent: topic=%s partition=%d offset=%d key=%s",
		topic, partition, offset, key)

	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

// noopProducer stands in when Kafka is disabled so callers never have
// to nil-check the producer.
type noopProducer struct{}

func NewNoopProducer() Producer {
	return noopProducer{}
}

func (noopProducer) PublishSeatStatusChanged(context.Context, SeatStatusChangedEvent) error { return nil }
func (noopProducer) PublishQueueEntered(context.Context, QueueEnteredEvent) error           { return nil }
func (noopProducer) PublishQueueExpired(context.Context, QueueExpiredEvent) error           { return nil }
func (noopProducer) PublishEventStatusChanged(context.Context, EventStatusChangedEvent) error {
	return nil
}
func (noopProducer) PublishPaymentCompleted(context.Context, PaymentCompletedEvent) error { return nil }
func (noopProducer) Close() error                                                         { return nil }
