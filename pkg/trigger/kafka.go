package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/cuemby/subnet-watchdog/pkg/log"
)

// KafkaConfig locates the change-data-capture topic for the subnets table
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Kafka signals once per message on a CDC topic. Message contents are not
// inspected; the coordinator refetches the whole table on every signal.
type Kafka struct {
	reader *kafka.Reader
	logger zerolog.Logger
}

// NewKafka creates a reader on the configured topic starting at the newest offset
func NewKafka(cfg KafkaConfig) *Kafka {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MaxBytes:    10 * 1024 * 1024,
		StartOffset: kafka.LastOffset,
	})
	return &Kafka{
		reader: reader,
		logger: log.WithComponent("kafka-trigger"),
	}
}

// Start consumes the topic until ctx is cancelled, then closes the reader
func (k *Kafka) Start(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() {
			if err := k.reader.Close(); err != nil {
				k.logger.Warn().Err(err).Msg("failed to close kafka reader")
			}
		}()

		for {
			msg, err := k.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				k.logger.Error().Err(err).Msg("failed to fetch change message")
				select {
				case <-time.After(time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}

			k.logger.Debug().
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("change message received")
			notify(out)

			if err := k.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				k.logger.Error().Err(err).Msg("failed to commit message: it will be redelivered")
			}
		}
	}()

	return out
}
