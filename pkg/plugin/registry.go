package plugin

import (
	"fmt"
	"slices"
	"sync"

	"firestige.xyz/speadcap/internal/core"
)

// Factory creates a fresh plugin instance.
type Factory[T Plugin] func() T

// registry is a name → factory table for one plugin kind.
type registry[T Plugin] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
	notFound  error
}

func newRegistry[T Plugin](notFound error) *registry[T] {
	return &registry[T]{factories: make(map[string]Factory[T]), notFound: notFound}
}

// register panics on duplicates; registration happens in init functions.
func (r *registry[T]) register(name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("plugin %q already registered", name))
	}
	r.factories[name] = f
}

func (r *registry[T]) get(name string) (Factory[T], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", r.notFound, name)
	}
	return f, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Reset clears the registry. Tests only.
func (r *registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory[T])
}

var (
	sourceReg   = newRegistry[Source](core.ErrSourceNotFound)
	reporterReg = newRegistry[Reporter](core.ErrReporterNotFound)
)

func RegisterSource(name string, f Factory[Source])     { sourceReg.register(name, f) }
func RegisterReporter(name string, f Factory[Reporter]) { reporterReg.register(name, f) }

func GetSourceFactory(name string) (Factory[Source], error)     { return sourceReg.get(name) }
func GetReporterFactory(name string) (Factory[Reporter], error) { return reporterReg.get(name) }

func SourceNames() []string   { return sourceReg.names() }
func ReporterNames() []string { return reporterReg.names() }

// NewSource creates and initialises the named source.
func NewSource(name string, cfg map[string]any) (Source, error) {
	f, err := GetSourceFactory(name)
	if err != nil {
		return nil, err
	}
	s := f()
	if err := s.Init(cfg); err != nil {
		return nil, fmt.Errorf("source %s: init failed: %w", name, err)
	}
	return s, nil
}

// NewReporter creates and initialises the named reporter.
func NewReporter(name string, cfg map[string]any) (Reporter, error) {
	f, err := GetReporterFactory(name)
	if err != nil {
		return nil, err
	}
	r := f()
	if err := r.Init(cfg); err != nil {
		return nil, fmt.Errorf("reporter %s: init failed: %w", name, err)
	}
	return r, nil
}
