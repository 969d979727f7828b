// Package metrics implements Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/speadcap/internal/core"
)

var (
	// PacketsDecodedTotal counts packets that passed every structural check.
	PacketsDecodedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speadcap_packets_decoded_total",
			Help: "Total number of SPEAD packets decoded",
		},
	)

	// DecodeErrorsTotal counts rejected word sequences by error kind.
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speadcap_decode_errors_total",
			Help: "Total number of word sequences rejected by the decoder",
		},
		[]string{"kind"},
	)

	// BatchDurationSeconds measures how long one Process call takes.
	BatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speadcap_batch_duration_seconds",
			Help:    "Duration of batch processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12), // 10µs to ~40s
		},
	)

	// ReportedPacketsTotal counts packets handed to each reporter.
	ReportedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speadcap_reported_packets_total",
			Help: "Total number of packets delivered to reporters",
		},
		[]string{"reporter"},
	)

	// ReporterErrorsTotal counts failed Report calls per reporter.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speadcap_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"reporter"},
	)
)

// Observer feeds processor events into the Prometheus collectors.
type Observer struct{}

func (Observer) PacketDecoded(core.Packet) { PacketsDecodedTotal.Inc() }

func (Observer) DecodeFailed(err error) { DecodeErrorsTotal.WithLabelValues(core.ErrorKind(err)).Inc() }

func (Observer) BatchDone(d time.Duration) { BatchDurationSeconds.Observe(d.Seconds()) }
