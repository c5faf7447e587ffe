package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/sink"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Init(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		wantErr bool
	}{
		{
			name:    "nil options",
			options: nil,
			wantErr: true,
		},
		{
			name:    "missing brokers",
			options: map[string]any{"topic": "test"},
			wantErr: true,
		},
		{
			name:    "missing topic",
			options: map[string]any{"brokers": []any{"localhost:9092"}},
			wantErr: true,
		},
		{
			name: "valid minimal config",
			options: map[string]any{
				"brokers": []any{"localhost:9092"},
				"topic":   "test-topic",
			},
		},
		{
			name: "inherited brokers as string slice",
			options: map[string]any{
				"brokers": []string{"localhost:9092"},
				"topic":   "test-topic",
			},
		},
		{
			name: "valid full config",
			options: map[string]any{
				"brokers":       "broker1:9092,broker2:9092",
				"topic":         "test-topic",
				"batch_size":    200,
				"batch_timeout": "200ms",
				"compression":   "zstd",
				"max_attempts":  5,
			},
		},
		{
			name: "invalid compression",
			options: map[string]any{
				"brokers":     []any{"localhost:9092"},
				"topic":       "test-topic",
				"compression": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid batch_timeout",
			options: map[string]any{
				"brokers":       []any{"localhost:9092"},
				"topic":         "test-topic",
				"batch_timeout": "invalid",
			},
			wantErr: true,
		},
		{
			name: "zero batch size",
			options: map[string]any{
				"brokers":    []any{"localhost:9092"},
				"topic":      "test-topic",
				"batch_size": 0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Sink{}
			err := s.Init(tt.options)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Stop(context.Background()))
		})
	}
}

func TestKafkaSink_Write(t *testing.T) {
	w := &fakeWriter{}
	s := &Sink{writer: w}

	err := s.Write(context.Background(), sink.Batch{
		Source: "capture.bin",
		Entries: core.Entries{
			Frames: []*core.FrameRecord{{ID: "f1", ContentHex: "00"}},
			Logs:   []*core.LogRecord{{ID: "l1", Message: "boot"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[1]
	assert.Equal(t, "capture.bin", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "kind", Value: []byte("log")},
		{Key: "entry_id", Value: []byte("l1")},
	}, msg.Headers)

	var env sink.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "boot", env.Log.Message)
	assert.Equal(t, uint64(2), s.reportedCount.Load())

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteEmptyAndError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	s := &Sink{writer: w}

	assert.NoError(t, s.Write(context.Background(), sink.Batch{Source: "empty.bin"}))

	err := s.Write(context.Background(), sink.Batch{
		Source:  "capture.bin",
		Entries: core.Entries{Logs: []*core.LogRecord{{ID: "l1"}}},
	})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), s.errorCount.Load())
}
