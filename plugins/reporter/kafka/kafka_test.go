package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/core/decoder"
	"firestige.xyz/speadcap/pkg/models"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

func testPacket(t *testing.T, withHeap bool) core.Packet {
	t.Helper()
	words := []core.Word{decoder.EncodeMagic(4, 2, 6, 1)}
	if withHeap {
		words[0] = decoder.EncodeMagic(4, 2, 6, 2)
		words = append(words, decoder.EncodeItemPointer(core.ItemHeapCounter, 1234, 16, 48, true))
	}
	words = append(words, decoder.EncodeItemPointer(core.ItemPayloadLength, 8, 16, 48, true), 7)
	pkt, err := decoder.FromWords(words, decoder.Expectations{})
	require.NoError(t, err)
	return pkt
}

func validConfig() map[string]any {
	return map[string]any{
		"brokers": []any{"localhost:9092"},
		"topic":   "test-topic",
	}
}

func TestKafkaReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"nil config", nil, true},
		{"missing brokers", map[string]any{"topic": "test"}, true},
		{"missing topic", map[string]any{"brokers": []any{"localhost:9092"}}, true},
		{"valid minimal config", validConfig(), false},
		{
			name: "valid full config",
			config: map[string]any{
				"brokers":       []any{"broker1:9092", "broker2:9092"},
				"topic":         "test-topic",
				"format":        "cbor",
				"headers_only":  true,
				"batch_size":    float64(200),
				"batch_timeout": "200ms",
				"compression":   "zstd",
				"max_attempts":  float64(5),
			},
		},
		{"comma separated brokers", map[string]any{"brokers": "a:9092,b:9092", "topic": "t"}, false},
		{"invalid compression", map[string]any{"brokers": []any{"localhost:9092"}, "topic": "t", "compression": "brotli"}, true},
		{"invalid batch_timeout", map[string]any{"brokers": []any{"localhost:9092"}, "topic": "t", "batch_timeout": "soon"}, true},
		{"text format rejected", map[string]any{"brokers": []any{"localhost:9092"}, "topic": "t", "format": "text"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewKafkaReporter().(*KafkaReporter)
			err := r.Init(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfigInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestKafkaReporter_ConfigDefaults(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(validConfig()))

	assert.Equal(t, defaultBatchSize, r.config.BatchSize)
	assert.Equal(t, defaultBatchTimeout, r.config.BatchTimeout)
	assert.Equal(t, defaultCompression, r.config.Compression)
	assert.Equal(t, defaultMaxAttempts, r.config.MaxAttempts)
	assert.Equal(t, models.FormatJSON, r.config.Format)
}

func TestKafkaReporter_Message(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(validConfig()))

	msg, err := r.message(testPacket(t, true))
	require.NoError(t, err)

	assert.Equal(t, "1234", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "spead-version", Value: []byte("4")},
		{Key: "spead-flavour", Value: []byte("64,48")},
		{Key: "content-type", Value: []byte("json")},
	}, msg.Headers)

	var rec models.Record
	require.NoError(t, json.Unmarshal(msg.Value, &rec))
	assert.Equal(t, []uint64{7}, rec.Payload)

	msg, err = r.message(testPacket(t, false))
	require.NoError(t, err)
	assert.Nil(t, msg.Key)
}

func batchOf(n int) interface{} {
	return mock.MatchedBy(func(msgs []kafka.Message) bool { return len(msgs) == n })
}

func TestKafkaReporter_ReportBatches(t *testing.T) {
	cfg := validConfig()
	cfg["batch_size"] = 2
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(cfg))

	w := &mockWriter{}
	r.writer = w
	w.On("WriteMessages", mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 2 && string(msgs[0].Key) == "1234" && msgs[1].Key == nil
	})).Return(nil).Once()
	w.On("WriteMessages", batchOf(1)).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Report(ctx, testPacket(t, true)))
	w.AssertNotCalled(t, "WriteMessages", mock.Anything)
	require.NoError(t, r.Report(ctx, testPacket(t, false)))
	assert.Equal(t, uint64(2), r.reportedCount.Load())

	require.NoError(t, r.Report(ctx, testPacket(t, true)))
	require.NoError(t, r.Flush(ctx))
	// nothing left to write
	require.NoError(t, r.Flush(ctx))
	require.NoError(t, r.Stop(ctx))

	assert.Equal(t, uint64(3), r.reportedCount.Load())
	assert.Zero(t, r.errorCount.Load())
	w.AssertNumberOfCalls(t, "WriteMessages", 2)
	w.AssertExpectations(t)
}

func TestKafkaReporter_FlushError(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(validConfig()))

	w := &mockWriter{}
	r.writer = w
	w.On("WriteMessages", batchOf(2)).Return(errors.New("broker down")).Once()
	w.On("Close").Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, r.Report(ctx, testPacket(t, true)))
	require.NoError(t, r.Report(ctx, testPacket(t, true)))

	err := r.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka write failed")

	// the failed batch is not retried on stop
	require.NoError(t, r.Stop(ctx))
	assert.Zero(t, r.reportedCount.Load())
	assert.Equal(t, uint64(2), r.errorCount.Load())
	w.AssertExpectations(t)
}

func TestKafkaReporter_StopFlushesPending(t *testing.T) {
	r := NewKafkaReporter().(*KafkaReporter)
	require.NoError(t, r.Init(validConfig()))

	w := &mockWriter{}
	r.writer = w
	w.On("WriteMessages", batchOf(1)).Return(nil).Once()
	w.On("Close").Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, r.Report(ctx, testPacket(t, true)))
	require.NoError(t, r.Stop(ctx))

	assert.Equal(t, uint64(1), r.reportedCount.Load())
	w.AssertExpectations(t)
}

func TestKafkaReporter_ReportBeforeInit(t *testing.T) {
	r := NewKafkaReporter()
	assert.Error(t, r.Report(context.Background(), core.Packet{}))
}

func TestKafkaReporter_Lifecycle(t *testing.T) {
	r := NewKafkaReporter()
	assert.Equal(t, "kafka", r.Name())
	require.NoError(t, r.Init(validConfig()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Start(ctx))
	assert.NoError(t, r.Stop(ctx))
}
