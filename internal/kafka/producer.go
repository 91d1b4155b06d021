package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"equipahub-backend/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes lifecycle envelopes keyed by subject id, so one booking's events stay ordered in a partition.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish publishes a raw message.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	const op = "kafka.Producer.Publish"

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Emit implements events.Emitter.
func (p *Producer) Emit(ctx context.Context, e events.Envelope) error {
	const op = "kafka.Producer.Emit"

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	entity, _, _ := strings.Cut(string(e.EventType), ".")
	key := []byte(entity + ":" + strconv.FormatUint(e.SubjectID, 10))
	return p.Publish(ctx, key, value)
}

func (p *Producer) Close() error { return p.writer.Close() }

