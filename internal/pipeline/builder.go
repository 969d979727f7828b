package pipeline

import (
	"firestige.xyz/speadcap/internal/log"
	"firestige.xyz/speadcap/internal/processor"
	"firestige.xyz/speadcap/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithSource(s plugin.Source) *Builder {
	b.config.Source = s
	return b
}

func (b *Builder) WithProcessor(p *processor.Processor) *Builder {
	b.config.Processor = p
	return b
}

// WithReporters appends to the reporter chain.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = append(b.config.Reporters, reporters...)
	return b
}

func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}
