// Package processor decodes batches of word sequences into an append-only
// list of packets.
package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/core/decoder"
	"firestige.xyz/speadcap/internal/log"
)

// FailureMode selects what a failing sequence does to the rest of the batch.
type FailureMode int

const (
	// FailFast stops at the first failing sequence. Packets decoded from
	// earlier sequences stay in the list.
	FailFast FailureMode = iota
	// Isolate keeps every good sequence and reports all failures together.
	Isolate
)

func (m FailureMode) String() string {
	switch m {
	case FailFast:
		return "fail_fast"
	case Isolate:
		return "isolate"
	default:
		return fmt.Sprintf("FailureMode(%d)", int(m))
	}
}

// ParseFailureMode parses "fail_fast" or "isolate" (empty means fail_fast).
func ParseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	default:
		return FailFast, fmt.Errorf("%w: failure mode must be fail_fast or isolate, got %q", core.ErrConfigInvalid, s)
	}
}

// Observer receives processing events, e.g. for metrics.
type Observer interface {
	PacketDecoded(pkt core.Packet)
	DecodeFailed(err error)
	BatchDone(d time.Duration)
}

// Config configures a Processor. Expect must carry Version and Flavour;
// NumHeaders and PayloadLen are checked only when set.
type Config struct {
	Expect        decoder.Expectations
	MissingLength decoder.LengthPolicy
	FailureMode   FailureMode
	Workers       int        // sequences decoded concurrently, default 1
	Logger        log.Logger // diagnostics; defaults to the global logger
	Observer      Observer   // optional
}

// Processor accumulates packets decoded from successive batches.
type Processor struct {
	asm      decoder.Assembler
	mode     FailureMode
	workers  int
	logger   log.Logger
	observer Observer

	mu      sync.RWMutex
	packets []core.Packet
}

// New creates a processor with an empty packet list.
func New(cfg Config) (*Processor, error) {
	if cfg.Expect.Version == nil {
		return nil, fmt.Errorf("%w: version is required", core.ErrConfigInvalid)
	}
	if cfg.Expect.Flavour == nil || *cfg.Expect.Flavour == "" {
		return nil, fmt.Errorf("%w: flavour is required", core.ErrConfigInvalid)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}

	return &Processor{
		asm:      decoder.Assembler{Expect: cfg.Expect, MissingLength: cfg.MissingLength},
		mode:     cfg.FailureMode,
		workers:  cfg.Workers,
		logger:   cfg.Logger.WithField("flavour", *cfg.Expect.Flavour),
		observer: cfg.Observer,
	}, nil
}

type result struct {
	pkt       core.Packet
	err       error
	cancelled bool // ctx was done before this sequence was decoded
}

// Process decodes every sequence and appends the resulting packets in input
// order. In FailFast mode the first failure is returned wrapped with its
// sequence index and later sequences are not appended. In Isolate mode all
// failures are combined with multierr.
func (p *Processor) Process(ctx context.Context, seqs [][]core.Word) error {
	start := time.Now()
	defer func() {
		if p.observer != nil {
			p.observer.BatchDone(time.Since(start))
		}
	}()

	if p.workers == 1 || len(seqs) < 2 {
		return p.processSequential(ctx, seqs)
	}
	return p.processConcurrent(ctx, seqs)
}

func (p *Processor) processSequential(ctx context.Context, seqs [][]core.Word) error {
	var errs error
	for i, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		pkt, err := p.asm.FromWords(seq)
		if err := p.collect(i, pkt, err); err != nil {
			if p.mode == FailFast {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// processConcurrent decodes all sequences in parallel, then merges the
// results sequentially so the packet list matches the sequential one.
func (p *Processor) processConcurrent(ctx context.Context, seqs [][]core.Word) error {
	mapper := iter.Mapper[[]core.Word, result]{MaxGoroutines: p.workers}
	results := mapper.Map(seqs, func(seq *[]core.Word) result {
		if err := ctx.Err(); err != nil {
			return result{err: err, cancelled: true}
		}
		pkt, err := p.asm.FromWords(*seq)
		return result{pkt: pkt, err: err}
	})
	return p.merge(results)
}

// merge appends results in input order. It stops at the first sequence that
// was skipped because of cancellation, keeping everything before it.
func (p *Processor) merge(results []result) error {
	var errs error
	for i, r := range results {
		if r.cancelled {
			return multierr.Append(errs, r.err)
		}
		if err := p.collect(i, r.pkt, r.err); err != nil {
			if p.mode == FailFast {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// collect appends a decoded packet or reports the failure of sequence i.
func (p *Processor) collect(i int, pkt core.Packet, err error) error {
	if err != nil {
		if p.observer != nil {
			p.observer.DecodeFailed(err)
		}
		p.logger.WithFields(map[string]interface{}{
			"sequence": i,
			"kind":     core.ErrorKind(err),
		}).WithError(err).Warn("word sequence rejected")
		return fmt.Errorf("sequence %d: %w", i, err)
	}

	p.mu.Lock()
	p.packets = append(p.packets, pkt)
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.PacketDecoded(pkt)
	}
	if p.logger.IsDebugEnabled() {
		p.logger.WithFields(map[string]interface{}{
			"sequence": i,
			"headers":  pkt.HeaderCount(),
			"payload":  pkt.PayloadLen(),
		}).Debug("packet decoded")
	}
	return nil
}

// Packets returns a copy of the packet list.
func (p *Processor) Packets() []core.Packet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.Packet, len(p.packets))
	copy(out, p.packets)
	return out
}

// Len returns the number of packets decoded so far.
func (p *Processor) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.packets)
}
