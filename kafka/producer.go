package kafka

import (
	"context"
	"encoding/json"

	"bulk-order-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes run-completed events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// SendRunCompleted publishes the event keyed by run ID. Failures are logged
// and returned, but callers treat publication as best-effort: a Kafka outage
// never fails a finished run.
func (p *Producer) SendRunCompleted(ctx context.Context, event models.BulkOrderCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		zap.L().Error("failed to send Kafka message",
			zap.String("topic", p.topic),
			zap.String("run_id", event.RunID),
			zap.Error(err))
		return err
	}
	return nil
}

func (p *Producer) Close() {
	_ = p.writer.Close()
}
