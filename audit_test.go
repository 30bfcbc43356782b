package goReset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q audit event", eventType)
		}
	}
}

func TestAuditDispatcherDeliversAndCloses(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: "e1"})
	d.Emit(context.Background(), AuditEvent{EventType: "e2"})
	d.Close()

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case event := <-sink.Events():
			got[event.EventType] = true
		case <-time.After(time.Second):
			t.Fatal("dispatcher dropped events on close")
		}
	}
	if !got["e1"] || !got["e2"] {
		t.Fatalf("missing events: %v", got)
	}

	// Emits after close are silently discarded.
	d.Emit(context.Background(), AuditEvent{EventType: "late"})
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never drains; buffer of 1 with DropIfFull must count drops
	// instead of blocking.
	blocked := make(chan struct{})
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sinkFunc(func(context.Context, AuditEvent) {
		<-blocked
	}))
	defer func() {
		close(blocked)
		d.Close()
	}()

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "burst"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}
}

type sinkFunc func(context.Context, AuditEvent)

func (f sinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "password_reset.request", Success: true, Email: "alice@example.com"})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink output is not JSON: %v", err)
	}
	if decoded["event_type"] != "password_reset.request" {
		t.Fatalf("unexpected event_type %v", decoded["event_type"])
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	hasher := newTestHasher(t)
	hash, _ := hasher.Hash("old password 1")
	dir := newMockDirectory(UserRecord{UserID: "u1", Email: "alice@example.com", PasswordHash: hash})
	mail := newRecordingMailer()

	sink := NewChannelSink(32)
	engine, _ := newTestEngine(t, rdb, dir, mail)
	engine.audit = newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 32}, sink)
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "198.51.100.7")

	if _, err := engine.RequestReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}
	event := waitForEvent(t, sink, auditEventResetRequest)
	if !event.Success || event.UserID != "u1" || event.IP != "198.51.100.7" {
		t.Fatalf("unexpected request event: %+v", event)
	}
	if strings.Contains(event.Error, "code") {
		t.Fatalf("event must not carry secrets: %+v", event)
	}

	code := codeFromBody(t, mail.waitForMessage(t).Body)

	if _, err := engine.VerifyCode(ctx, "alice@example.com", wrongCode(code)); err == nil {
		t.Fatal("expected wrong code to fail")
	}
	event = waitForEvent(t, sink, auditEventResetVerify)
	if event.Success || event.Error != string(auditErrCodeInvalid) {
		t.Fatalf("unexpected verify event: %+v", event)
	}

	result, err := engine.VerifyCode(ctx, "alice@example.com", code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	event = waitForEvent(t, sink, auditEventResetVerify)
	if !event.Success {
		t.Fatalf("expected success verify event, got %+v", event)
	}

	if err := engine.FinalizeReset(ctx, "alice@example.com", result.ResetToken, "NewPass1234"); err != nil {
		t.Fatalf("FinalizeReset failed: %v", err)
	}
	event = waitForEvent(t, sink, auditEventResetFinalize)
	if !event.Success || event.UserID != "u1" {
		t.Fatalf("unexpected finalize event: %+v", event)
	}
}

func TestEngineThrottleAuditEvent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	sink := NewChannelSink(8)
	engine, _ := newTestEngine(t, rdb, dir, newRecordingMailer())
	engine.audit = newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer engine.Close()

	ctx := context.Background()

	if _, err := engine.RequestReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := engine.RequestReset(ctx, "ghost@example.com"); !errors.Is(err, ErrRequestCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}

	event := waitForEvent(t, sink, auditEventResetThrottled)
	if event.Success || event.Error != string(auditErrCooldown) {
		t.Fatalf("unexpected throttle event: %+v", event)
	}
	if event.Metadata["scope"] != "cooldown" {
		t.Fatalf("expected cooldown scope metadata, got %+v", event.Metadata)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricResetRequest)
	m.Inc(MetricResetRequest)
	m.Inc(MetricVerifySuccess)

	snap := m.Snapshot()
	if snap.Counters[MetricResetRequest] != 2 {
		t.Fatalf("expected 2 reset requests, got %d", snap.Counters[MetricResetRequest])
	}
	if snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("expected 1 verify success, got %d", snap.Counters[MetricVerifySuccess])
	}

	disabled := NewMetrics(MetricsConfig{})
	disabled.Inc(MetricResetRequest)
	if len(disabled.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics must stay empty")
	}
}
