package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewBinlog_CreatesAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBinlog(registry)

	if m == nil {
		t.Fatal("NewBinlog returned nil")
	}
	if m.rotationsTotal == nil {
		t.Error("rotationsTotal not initialized")
	}
	if m.flushTotal == nil {
		t.Error("flushTotal not initialized")
	}
	if m.flushDuration == nil {
		t.Error("flushDuration not initialized")
	}
	if m.flushBytes == nil {
		t.Error("flushBytes not initialized")
	}
	if m.repushTotal == nil {
		t.Error("repushTotal not initialized")
	}
	if m.segmentSize == nil {
		t.Error("segmentSize not initialized")
	}
	if m.writeErrorTotal == nil {
		t.Error("writeErrorTotal not initialized")
	}
}

func TestBinlog_ObserveRotation_IncrementsCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBinlog(registry)

	m.ObserveRotation("/tmp/dir")
	m.ObserveRotation("/tmp/dir")

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "binlogkit_writer_rotations_total" {
			found = true
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].GetCounter().GetValue() != 2 {
				t.Errorf("expected 2 rotations, got %v", mf.GetMetric()[0].GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Error("expected binlogkit_writer_rotations_total metric")
	}
}

func TestBinlog_ObserveFlush_RecordsHistogramAndCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBinlog(registry)

	m.ObserveFlush("/tmp/dir", 1024, 5*time.Millisecond)

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"binlogkit_writer_flush_total",
		"binlogkit_writer_flush_duration_seconds",
		"binlogkit_writer_flush_bytes",
	} {
		if !names[want] {
			t.Errorf("expected %s metric", want)
		}
	}
}

func TestBinlog_SetSegmentSize_UpdatesGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBinlog(registry)

	m.SetSegmentSize("/tmp/dir", 4096)

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "binlogkit_writer_segment_size_bytes" {
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].GetGauge().GetValue() != 4096 {
				t.Errorf("expected segment size 4096, got %v", mf.GetMetric()[0].GetGauge().GetValue())
			}
			return
		}
	}
	t.Error("expected binlogkit_writer_segment_size_bytes metric")
}

func TestBinlog_NilRegistry_NoPanic(t *testing.T) {
	m := NewBinlog(nil)

	m.ObserveRotation("dir")
	m.ObserveFlush("dir", 10, time.Millisecond)
	m.ObserveRepush("dir")
	m.SetSegmentSize("dir", 1)
	m.ObserveWriteError("dir")
}

func TestBinlog_NilReceiver_NoPanic(t *testing.T) {
	var m *Binlog

	m.ObserveRotation("dir")
	m.ObserveFlush("dir", 10, time.Millisecond)
	m.ObserveRepush("dir")
	m.SetSegmentSize("dir", 1)
	m.ObserveWriteError("dir")
}

func TestNewReceipt_CreatesAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewReceipt(registry)

	if m == nil {
		t.Fatal("NewReceipt returned nil")
	}
	if m.batchSize == nil {
		t.Error("batchSize not initialized")
	}
	if m.roundTripSeconds == nil {
		t.Error("roundTripSeconds not initialized")
	}
	if m.reconnectsTotal == nil {
		t.Error("reconnectsTotal not initialized")
	}
	if m.establishedGauge == nil {
		t.Error("establishedGauge not initialized")
	}
	if m.heartbeatsTotal == nil {
		t.Error("heartbeatsTotal not initialized")
	}
}

func TestReceipt_ObserveBatchAndRoundTrip(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewReceipt(registry)

	m.ObserveBatch(3)
	m.ObserveRoundTrip(20 * time.Millisecond)

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"binlogkit_receipt_batch_size",
		"binlogkit_receipt_round_trip_seconds",
	} {
		if !names[want] {
			t.Errorf("expected %s metric", want)
		}
	}
}

func TestReceipt_ReconnectAndHeartbeatCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewReceipt(registry)

	m.ObserveReconnect()
	m.ObserveReconnect()
	m.ObserveHeartbeat()

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range mfs {
		switch mf.GetName() {
		case "binlogkit_receipt_reconnects_total":
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].GetCounter().GetValue() != 2 {
				t.Errorf("expected 2 reconnects, got %v", mf.GetMetric()[0].GetCounter().GetValue())
			}
		case "binlogkit_receipt_heartbeats_total":
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].GetCounter().GetValue() != 1 {
				t.Errorf("expected 1 heartbeat, got %v", mf.GetMetric()[0].GetCounter().GetValue())
			}
		}
	}
}

func TestReceipt_SetEstablished_UpdatesGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewReceipt(registry)

	m.SetEstablished(7)

	mfs, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "binlogkit_receipt_channels_established" {
			if len(mf.GetMetric()) > 0 && mf.GetMetric()[0].GetGauge().GetValue() != 7 {
				t.Errorf("expected 7 established channels, got %v", mf.GetMetric()[0].GetGauge().GetValue())
			}
			return
		}
	}
	t.Error("expected binlogkit_receipt_channels_established metric")
}

func TestReceipt_NilRegistry_NoPanic(t *testing.T) {
	m := NewReceipt(nil)

	m.ObserveBatch(1)
	m.ObserveRoundTrip(time.Millisecond)
	m.ObserveReconnect()
	m.SetEstablished(1)
	m.ObserveHeartbeat()
}

func TestReceipt_NilReceiver_NoPanic(t *testing.T) {
	var m *Receipt

	m.ObserveBatch(1)
	m.ObserveRoundTrip(time.Millisecond)
	m.ObserveReconnect()
	m.SetEstablished(1)
	m.ObserveHeartbeat()
}
