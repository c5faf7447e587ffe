// Package kafka publishes entries to a Kafka topic, one message per entry.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/tracekit/internal/sink"
)

const Name = "kafka"

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Config represents Kafka output configuration. Brokers default to the global
// `kafka.brokers` list.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	config Config
	writer messageWriter

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

func init() {
	sink.Register(Name, func() sink.Sink { return &Sink{} })
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Init(options map[string]any) error {
	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if err := sink.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0")
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same source file lands on the same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	case "zstd":
		writerConfig.CompressionCodec = compress.Zstd.Codec()
	default:
		return fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	s.config = cfg
	s.writer = kafka.NewWriter(writerConfig)
	return nil
}

func (s *Sink) Start(ctx context.Context) error {
	slog.Info("kafka output started",
		"brokers", s.config.Brokers,
		"topic", s.config.Topic,
		"batch_size", s.config.BatchSize,
		"batch_timeout", s.config.BatchTimeout,
		"compression", s.config.Compression,
	)
	return nil
}

func (s *Sink) Stop(ctx context.Context) error {
	if s.writer != nil {
		// Flush any pending messages
		if err := s.writer.Close(); err != nil {
			slog.Error("error closing kafka writer", "error", err)
			return err
		}
	}
	slog.Info("kafka output stopped",
		"total_reported", s.reportedCount.Load(),
		"total_errors", s.errorCount.Load(),
	)
	return nil
}

// Write sends every entry of the batch in one WriteMessages call. Messages are keyed
// by source so one file's entries keep their order within a partition.
func (s *Sink) Write(ctx context.Context, batch sink.Batch) error {
	envs := sink.Envelopes(batch)
	if len(envs) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(envs))
	now := time.Now()
	for _, env := range envs {
		value, err := json.Marshal(env)
		if err != nil {
			s.errorCount.Add(1)
			return fmt.Errorf("serialize entry failed: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(batch.Source),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(env.Kind)},
				{Key: "entry_id", Value: []byte(env.ID())},
			},
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.errorCount.Add(uint64(len(msgs)))
		return fmt.Errorf("kafka write failed: %w", err)
	}
	s.reportedCount.Add(uint64(len(msgs)))
	return nil
}
