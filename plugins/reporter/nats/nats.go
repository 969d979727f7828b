// Package nats implements a reporter that publishes packet records to NATS.
package nats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/pkg/models"
	"firestige.xyz/speadcap/pkg/plugin"
)

const (
	Name = "nats"

	defaultSubject = "speadcap.packets"
	defaultTimeout = 2 * time.Second
)

func init() {
	plugin.RegisterReporter(Name, NewNatsReporter)
}

// publisher is the part of *nats.Conn the reporter uses.
type publisher interface {
	Publish(subj string, data []byte) error
	Flush() error
	Close()
}

// Config represents NATS reporter configuration.
type Config struct {
	URL         string        `mapstructure:"url"`          // optional, default nats://127.0.0.1:4222
	Subject     string        `mapstructure:"subject"`      // optional, default speadcap.packets
	Format      string        `mapstructure:"format"`       // optional: json|cbor|yaml, default json
	HeadersOnly bool          `mapstructure:"headers_only"` // optional
	Timeout     time.Duration `mapstructure:"timeout"`      // optional, connect timeout
}

type NatsReporter struct {
	config Config
	conn   publisher
	logger log.Logger

	// connect is replaced in tests.
	connect func(Config) (publisher, error)

	published atomic.Uint64
}

func NewNatsReporter() plugin.Reporter {
	return &NatsReporter{connect: dial}
}

func dial(c Config) (publisher, error) {
	return nats.Connect(c.URL, nats.Name("speadcap"), nats.Timeout(c.Timeout))
}

func (r *NatsReporter) Name() string { return Name }

func (r *NatsReporter) Init(cfg map[string]any) error {
	c := Config{
		URL:     nats.DefaultURL,
		Subject: defaultSubject,
		Format:  models.FormatJSON,
		Timeout: defaultTimeout,
	}
	if err := config.DecodePluginConfig(cfg, &c); err != nil {
		return err
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: subject must not be empty", core.ErrConfigInvalid)
	}
	if c.Format == models.FormatText || !models.ValidFormat(c.Format) {
		return fmt.Errorf("%w: format must be json, cbor or yaml, got %q", core.ErrConfigInvalid, c.Format)
	}
	r.config = c
	r.logger = log.GetLogger().WithField("reporter", Name)
	return nil
}

// Start connects to the server.
func (r *NatsReporter) Start(ctx context.Context) error {
	conn, err := r.connect(r.config)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", r.config.URL, err)
	}
	r.conn = conn
	r.logger.WithField("url", r.config.URL).WithField("subject", r.config.Subject).Info("nats reporter started")
	return nil
}

func (r *NatsReporter) Report(ctx context.Context, pkt core.Packet) error {
	if r.conn == nil {
		return fmt.Errorf("nats reporter not started")
	}
	data, err := models.Encode(r.config.Format, pkt, core.RenderOptions{HeadersOnly: r.config.HeadersOnly})
	if err != nil {
		return fmt.Errorf("serialize packet failed: %w", err)
	}
	if err := r.conn.Publish(r.config.Subject, data); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}
	r.published.Add(1)
	return nil
}

// Flush blocks until the server has processed every published message.
func (r *NatsReporter) Flush(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Flush()
}

func (r *NatsReporter) Stop(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Flush()
	r.conn.Close()
	r.conn = nil
	r.logger.WithField("total_published", r.published.Load()).Info("nats reporter stopped")
	return err
}
