// Package console implements console debug reporter.
// Writes packets to stdout, as text lines or as encoded records.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/pkg/models"
	"firestige.xyz/speadcap/pkg/plugin"
)

const Name = "console"

func init() {
	plugin.RegisterReporter(Name, NewConsoleReporter)
}

// Config represents console reporter configuration.
type Config struct {
	Format      string `mapstructure:"format"`       // text | json | yaml, default text
	HeadersOnly bool   `mapstructure:"headers_only"` // omit payload words
	Hex         bool   `mapstructure:"hex"`          // header values in hex (text only)
}

// ConsoleReporter writes packets to an io.Writer.
type ConsoleReporter struct {
	config        Config
	mu            sync.Mutex
	out           io.Writer
	reportedCount atomic.Uint64
}

// NewConsoleReporter creates a console reporter writing to stdout.
func NewConsoleReporter() plugin.Reporter {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a console reporter writing to w.
func NewWithWriter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{config: Config{Format: models.FormatText}, out: w}
}

func (r *ConsoleReporter) Name() string { return Name }

func (r *ConsoleReporter) Init(cfg map[string]any) error {
	if err := config.DecodePluginConfig(cfg, &r.config); err != nil {
		return err
	}
	switch r.config.Format {
	case models.FormatText, models.FormatJSON, models.FormatYAML:
	case "":
		r.config.Format = models.FormatText
	default:
		return fmt.Errorf("%w: invalid format %q, must be text, json or yaml", core.ErrConfigInvalid, r.config.Format)
	}
	return nil
}

func (r *ConsoleReporter) Start(ctx context.Context) error {
	log.GetLogger().WithField("format", r.config.Format).Debug("console reporter started")
	return nil
}

func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("console reporter stopped")
	return nil
}

// Report writes one packet. YAML documents are separated by "---".
func (r *ConsoleReporter) Report(ctx context.Context, pkt core.Packet) error {
	data, err := models.Encode(r.config.Format, pkt, core.RenderOptions{HeadersOnly: r.config.HeadersOnly, Hex: r.config.Hex})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.Format == models.FormatYAML && r.reportedCount.Load() > 0 {
		if _, err := io.WriteString(r.out, "---\n"); err != nil {
			return err
		}
	}
	if _, err := r.out.Write(data); err != nil {
		return fmt.Errorf("console write failed: %w", err)
	}
	if r.config.Format == models.FormatJSON {
		if _, err := io.WriteString(r.out, "\n"); err != nil {
			return err
		}
	}
	r.reportedCount.Add(1)
	return nil
}

// Flush is a no-op, writes are unbuffered.
func (r *ConsoleReporter) Flush(ctx context.Context) error { return nil }

// Reported returns the number of packets written.
func (r *ConsoleReporter) Reported() uint64 { return r.reportedCount.Load() }
