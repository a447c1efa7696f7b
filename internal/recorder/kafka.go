package recorder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"
)

// KafkaConfig names the brokers and topic for the kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per record, keyed by book so a partition keeps
// the per book order.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("invalid kafka sink config: Brokers is empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("invalid kafka sink config: Topic is empty")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}, nil
}

func (k *KafkaSink) Name() string {
	return "kafka"
}

func (k *KafkaSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := toMessages(records)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func toMessages(records []Record) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return nil, errors.Wrap(err, "marshal record")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Key()),
			Value: value,
			Time:  r.Timestamp,
			Headers: []kafka.Header{
				{Key: "batch_id", Value: []byte(r.BatchID)},
			},
		})
	}
	return msgs, nil
}
