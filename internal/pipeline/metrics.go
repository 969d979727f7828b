package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}
