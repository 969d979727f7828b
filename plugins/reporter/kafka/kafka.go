// Package kafka implements Kafka reporter plugin.
// Sends encoded packet records to Kafka with batching and compression.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/pkg/models"
	"firestige.xyz/speadcap/pkg/plugin"
)

const (
	Name = "kafka"

	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
	defaultFormat       = models.FormatJSON
)

func init() {
	plugin.RegisterReporter(Name, NewKafkaReporter)
}

// messageWriter is the part of *kafka.Writer the reporter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends packets to Kafka.
type KafkaReporter struct {
	writer messageWriter
	config Config
	logger log.Logger

	mu      sync.Mutex
	pending []kafka.Message

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`       // required
	Topic        string        `mapstructure:"topic"`         // required
	Format       string        `mapstructure:"format"`        // optional: json|cbor|yaml, default json
	HeadersOnly  bool          `mapstructure:"headers_only"`  // optional
	BatchSize    int           `mapstructure:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // optional, default 100ms
	Compression  string        `mapstructure:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `mapstructure:"max_attempts"`  // optional, default 3
}

// NewKafkaReporter creates a new Kafka reporter.
func NewKafkaReporter() plugin.Reporter {
	return &KafkaReporter{}
}

func (r *KafkaReporter) Name() string { return Name }

// Init validates the configuration and creates the Kafka writer.
func (r *KafkaReporter) Init(cfg map[string]any) error {
	if cfg == nil {
		return fmt.Errorf("%w: kafka reporter requires configuration", core.ErrConfigInvalid)
	}

	c := Config{
		Format:       defaultFormat,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}
	if err := config.DecodePluginConfig(cfg, &c); err != nil {
		return err
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: brokers is required", core.ErrConfigInvalid)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: topic is required", core.ErrConfigInvalid)
	}
	if c.Format == models.FormatText || !models.ValidFormat(c.Format) {
		return fmt.Errorf("%w: format must be json, cbor or yaml, got %q", core.ErrConfigInvalid, c.Format)
	}

	codec, err := compressionCodec(c.Compression)
	if err != nil {
		return err
	}

	r.config = c
	r.logger = log.GetLogger().WithField("reporter", Name)
	r.writer = kafka.NewWriter(kafka.WriterConfig{
		Brokers:          c.Brokers,
		Topic:            c.Topic,
		Balancer:         &kafka.Hash{}, // same heap counter, same partition
		BatchSize:        c.BatchSize,
		BatchTimeout:     c.BatchTimeout,
		MaxAttempts:      c.MaxAttempts,
		CompressionCodec: codec,
		Async:            false,
	})
	return nil
}

func compressionCodec(name string) (compress.Codec, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	case "zstd":
		return compress.Zstd.Codec(), nil
	default:
		return nil, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, name)
	}
}

func (r *KafkaReporter) Start(ctx context.Context) error {
	r.logger.WithFields(map[string]interface{}{
		"brokers":       r.config.Brokers,
		"topic":         r.config.Topic,
		"format":        r.config.Format,
		"batch_size":    r.config.BatchSize,
		"batch_timeout": r.config.BatchTimeout,
		"compression":   r.config.Compression,
	}).Info("kafka reporter started")
	return nil
}

// Stop flushes pending messages and closes the writer.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer != nil {
		if err := r.Flush(ctx); err != nil {
			r.logger.WithError(err).Warn("dropping undelivered messages on stop")
		}
		if err := r.writer.Close(); err != nil {
			r.logger.WithError(err).Error("error closing kafka writer")
			return err
		}
	}
	r.logger.WithField("total_reported", r.reportedCount.Load()).
		WithField("total_errors", r.errorCount.Load()).
		Info("kafka reporter stopped")
	return nil
}

// Report queues a packet. A full batch is written before Report returns;
// the rest goes out on Flush.
func (r *KafkaReporter) Report(ctx context.Context, pkt core.Packet) error {
	if r.writer == nil {
		return fmt.Errorf("kafka reporter not initialised")
	}

	msg, err := r.message(pkt)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("serialize packet failed: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, msg)
	if len(r.pending) < r.config.BatchSize {
		return nil
	}
	return r.writePending(ctx)
}

// writePending sends the queued messages in one WriteMessages call. The
// queue is cleared whatever the outcome. Callers hold r.mu.
func (r *KafkaReporter) writePending(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil

	if err := r.writer.WriteMessages(ctx, batch...); err != nil {
		r.errorCount.Add(uint64(len(batch)))
		return fmt.Errorf("kafka write failed: %d messages: %w", len(batch), err)
	}
	r.reportedCount.Add(uint64(len(batch)))
	return nil
}

// message builds the Kafka message. The key is the heap counter so all
// packets of a heap land on one partition.
func (r *KafkaReporter) message(pkt core.Packet) (kafka.Message, error) {
	value, err := models.Encode(r.config.Format, pkt, core.RenderOptions{HeadersOnly: r.config.HeadersOnly})
	if err != nil {
		return kafka.Message{}, err
	}
	m := pkt.Magic()
	msg := kafka.Message{
		Value: value,
		Headers: []kafka.Header{
			{Key: "spead-version", Value: []byte(strconv.Itoa(int(m.Version)))},
			{Key: "spead-flavour", Value: []byte(m.Flavour())},
			{Key: "content-type", Value: []byte(r.config.Format)},
		},
	}
	if heap, ok := pkt.Header(core.ItemHeapCounter); ok {
		msg.Key = []byte(strconv.FormatUint(heap, 10))
	}
	return msg, nil
}

// Flush writes the queued messages.
func (r *KafkaReporter) Flush(ctx context.Context) error {
	if r.writer == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writePending(ctx)
}
