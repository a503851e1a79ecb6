// Package observe holds the OpenTelemetry instruments recorded by the voice
// pipeline and the provider setup that exposes them to Prometheus.
//
// Tests should build their own [Metrics] with [NewMetrics] and a manual reader.
// A nil *Metrics is valid and records nothing.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/foxseedlab/kotodama"

// Capture outcomes, used as the "status" attribute of kotodama.captures.
const (
	CaptureTooShort     = "too_short"
	CaptureEmpty        = "empty"
	CaptureIgnored      = "ignored"
	CaptureAcknowledged = "acknowledged"
	CaptureReplied      = "replied"
	CaptureFailed       = "failed"
	CaptureCancelled    = "cancelled"
)

type Metrics struct {
	STTDuration metric.Float64Histogram
	LLMDuration metric.Float64Histogram
	TTSDuration metric.Float64Histogram

	// Captures counts finished captures by status.
	Captures metric.Int64Counter

	// PlaybackItems counts queued items by kind ("speech", "resource").
	PlaybackItems metric.Int64Counter

	// MediaAcquisitions counts resolver attempts by strategy and status.
	MediaAcquisitions metric.Int64Counter

	ActiveGuildSessions metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("kotodama.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("kotodama.llm.duration",
		metric.WithDescription("Latency of language model replies."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("kotodama.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Captures, err = m.Int64Counter("kotodama.captures",
		metric.WithDescription("Finished voice captures by status."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackItems, err = m.Int64Counter("kotodama.playback.items",
		metric.WithDescription("Items enqueued for playback by kind."),
	); err != nil {
		return nil, err
	}
	if met.MediaAcquisitions, err = m.Int64Counter("kotodama.media.acquisitions",
		metric.WithDescription("Media acquisition attempts by strategy and status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveGuildSessions, err = m.Int64UpDownCounter("kotodama.active_guild_sessions",
		metric.WithDescription("Number of connected guild voice sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func (m *Metrics) ObserveSTT(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.STTDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) ObserveLLM(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) ObserveTTS(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.TTSDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) RecordCapture(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordPlaybackItem(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.PlaybackItems.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordMediaAcquisition(ctx context.Context, strategy, status string) {
	if m == nil {
		return
	}
	m.MediaAcquisitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("status", status),
	))
}

// GuildSessionOpened and GuildSessionClosed keep the active session gauge.
func (m *Metrics) GuildSessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveGuildSessions.Add(ctx, 1)
}

func (m *Metrics) GuildSessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveGuildSessions.Add(ctx, -1)
}
