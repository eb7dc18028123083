package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"

	"shipper-dispatch/internal/logx"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes keyed messages through a Sarama sync producer
type Producer struct {
	p sarama.SyncProducer
}

// NewProducer creates a Producer with idempotent-friendly settings.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers")
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{p: p}, nil
}

// SendMessage sends value to topic under key.
func (p *Producer) SendMessage(ctx context.Context, topic, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.p.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

// Close closes the underlying producer.
func (p *Producer) Close() error {
	return p.p.Close()
}

// LogProducer writes messages to the logger. Used when no brokers are configured.
type LogProducer struct {
	logger logx.Logger
}

// NewLogProducer creates a LogProducer
func NewLogProducer(logger logx.Logger) *LogProducer {
	logger = logx.OrNop(logger)
	return &LogProducer{logger: logger}
}

func (p *LogProducer) SendMessage(_ context.Context, topic, key string, value []byte) error {
	p.logger.Info("event published",
		logx.String("topic", topic),
		logx.String("key", key),
		logx.String("payload", string(value)),
	)
	return nil
}

func (p *LogProducer) Close() error { return nil }
