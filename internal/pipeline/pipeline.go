// Package pipeline wires a source, the processor and reporters into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/internal/metrics"
	"firestige.xyz/speadcap/internal/processor"
	"firestige.xyz/speadcap/pkg/plugin"
)

// Pipeline reads word sequences from a source, decodes them and hands every
// new packet to each reporter.
type Pipeline struct {
	source    plugin.Source
	processor *processor.Processor
	reporters []plugin.Reporter
	logger    log.Logger
	metrics   *Metrics
}

// Config contains pipeline configuration.
type Config struct {
	Source    plugin.Source
	Processor *processor.Processor
	Reporters []plugin.Reporter
	Logger    log.Logger
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("pipeline: processor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}
	return &Pipeline{
		source:    cfg.Source,
		processor: cfg.Processor,
		reporters: cfg.Reporters,
		logger:    cfg.Logger.WithField("source", cfg.Source.Name()),
		metrics:   &Metrics{},
	}, nil
}

// Run performs one pass: start plugins, read, process, report, flush, stop.
// The returned error carries decode failures (per the processor's failure
// mode) and lifecycle errors. Individual report failures are only counted.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	started, err := p.start(ctx)
	defer func() {
		err = multierr.Append(err, p.stop(context.WithoutCancel(ctx), started))
	}()
	if err != nil {
		return err
	}

	seqs, err := p.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.source.Name(), err)
	}
	p.metrics.Received.Add(uint64(len(seqs)))
	p.logger.WithField("sequences", len(seqs)).Debug("word sequences read")

	before := p.processor.Len()
	procErr := p.processor.Process(ctx, seqs)
	fresh := p.processor.Packets()[before:]
	p.metrics.Decoded.Add(uint64(len(fresh)))
	if procErr != nil && ctx.Err() == nil {
		p.metrics.DecodeErrors.Add(uint64(len(multierr.Errors(procErr))))
	}

	for _, pkt := range fresh {
		for _, r := range p.reporters {
			if rerr := r.Report(ctx, pkt); rerr != nil {
				p.metrics.ReportErrors.Add(1)
				metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
				p.logger.WithField("reporter", r.Name()).WithError(rerr).Error("reporter failed")
				continue
			}
			metrics.ReportedPacketsTotal.WithLabelValues(r.Name()).Inc()
		}
		p.metrics.Reported.Add(1)
	}

	for _, r := range p.reporters {
		if ferr := r.Flush(ctx); ferr != nil {
			p.metrics.ReportErrors.Add(1)
			p.logger.WithField("reporter", r.Name()).WithError(ferr).Error("reporter flush failed")
		}
	}

	s := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"received":      s.Received,
		"decoded":       s.Decoded,
		"decode_errors": s.DecodeErrors,
		"reported":      s.Reported,
	}).Info("pipeline run finished")
	return procErr
}

// start starts the source then every reporter. It returns how many reporters
// were started so stop can unwind exactly those.
func (p *Pipeline) start(ctx context.Context) (int, error) {
	if err := p.source.Start(ctx); err != nil {
		return -1, fmt.Errorf("start source %s: %w", p.source.Name(), err)
	}
	for i, r := range p.reporters {
		if err := r.Start(ctx); err != nil {
			return i, fmt.Errorf("start reporter %s: %w", r.Name(), err)
		}
	}
	return len(p.reporters), nil
}

func (p *Pipeline) stop(ctx context.Context, started int) error {
	if started < 0 {
		return nil
	}
	var errs error
	for i := started - 1; i >= 0; i-- {
		r := p.reporters[i]
		if err := r.Stop(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop reporter %s: %w", r.Name(), err))
		}
	}
	if err := p.source.Stop(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop source %s: %w", p.source.Name(), err))
	}
	return errs
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:     p.metrics.Received.Load(),
		Decoded:      p.metrics.Decoded.Load(),
		DecodeErrors: p.metrics.DecodeErrors.Load(),
		Reported:     p.metrics.Reported.Load(),
		ReportErrors: p.metrics.ReportErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64 // word sequences read from the source
	Decoded      uint64
	DecodeErrors uint64
	Reported     uint64 // packets offered to the reporters
	ReportErrors uint64
}
