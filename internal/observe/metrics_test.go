package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordCapture_CountsByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCapture(ctx, CaptureReplied)
	m.RecordCapture(ctx, CaptureReplied)
	m.RecordCapture(ctx, CaptureTooShort)

	got := findMetric(t, reader, "kotodama.captures")
	if got == nil {
		t.Fatal("captures metric not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type: %T", got.Data)
	}
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[v.AsString()] = dp.Value
	}
	if counts[CaptureReplied] != 2 || counts[CaptureTooShort] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestObserveSTT_RecordsSeconds(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.ObserveSTT(context.Background(), 1500*time.Millisecond)

	got := findMetric(t, reader, "kotodama.stt.duration")
	if got == nil {
		t.Fatal("stt metric not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type: %T", got.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 || hist.DataPoints[0].Sum != 1.5 {
		t.Fatalf("unexpected histogram: %+v", hist.DataPoints)
	}
}

func TestGuildSessionGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.GuildSessionOpened(ctx)
	m.GuildSessionOpened(ctx)
	m.GuildSessionClosed(ctx)

	got := findMetric(t, reader, "kotodama.active_guild_sessions")
	if got == nil {
		t.Fatal("gauge not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected gauge: %+v", got.Data)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.ObserveSTT(ctx, time.Second)
	m.RecordCapture(ctx, CaptureFailed)
	m.RecordMediaAcquisition(ctx, "direct", "ok")
	m.GuildSessionOpened(ctx)
}
