package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gocomet/ride-dispatch/internal/domain/ride"
	"github.com/segmentio/kafka-go"
)

// Publisher exports domain events to a Kafka topic for downstream
// consumers (analytics, audit). Nothing in the core reads it back;
// in-band delivery never depends on this path.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a producer for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Publisher{writer: w}
}

// Publish writes one event, keyed by ride id so per-ride ordering is
// preserved within a partition.
func (p *Publisher) Publish(ev ride.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RideID.String()), Value: b})
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
