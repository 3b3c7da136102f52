package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"production", func(c *Config) { *c = *ProductionConfig() }, false},
		{"missing service", func(c *Config) { c.ServiceName = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, true},
		{"sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"metrics address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.ListenAddress = "" }, true},
		{"event buffer", func(c *Config) { c.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	// None of these may panic on the zero-value collectors.
	m.RecordOperator("cause", "success", time.Millisecond)
	m.RecordLoopCreated("naive")
	m.RecordClassCreated()
	m.RecordSimulation("success")
	m.RecordBatchStarted()
	m.RecordBatchCompleted(1, 0, time.Millisecond)
	m.RecordStoreOperation("sqlite", "get_loop", time.Millisecond)
	m.RecordStoreError("sqlite", "get_loop")
	m.RecordError("permanent", "NOT_FOUND")
	m.RecordLintViolation("death-terminal", "warning")
	m.SetGraphNodes(3)

	if m.Registry() != nil {
		t.Error("disabled metrics should not own a registry")
	}
}

func TestMetricsEnabledRegisters(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordOperator("avoid", "failure", time.Millisecond)
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "loop_operator_runs_total" {
			found = true
		}
	}
	if !found {
		t.Error("loop_operator_runs_total not registered")
	}
}

func TestEventPublisherDelivers(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 8})
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}
	defer ep.Shutdown(context.Background())

	got := make(chan Event, 4)
	ep.Subscribe(func(e Event) { got <- e }, FilterByOperator("cause"))

	if err := ep.PublishOperatorCompleted("avoid", "", "Target avoided", true, time.Millisecond); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := ep.PublishOperatorCompleted("cause", "loop_x", "Target event reached", true, time.Millisecond); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case e := <-got:
		if e.Operator != "cause" || e.LoopID != "loop_x" || e.ID == "" || e.Timestamp.IsZero() {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	select {
	case e := <-got:
		t.Errorf("filtered event delivered: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByLevel(t *testing.T) {
	filter := FilterByLevel(EventLevelWarning)
	if filter(Event{Level: EventLevelInfo}) {
		t.Error("info passed warning filter")
	}
	if !filter(Event{Level: EventLevelError}) {
		t.Error("error rejected by warning filter")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LoggingConfig{Level: "debug", Format: "json"})

	logger.NewComponentLogger("store").WithLoopID("loop_abc").WithError(errors.New("boom")).Warn("integrity issue")

	out := buf.String()
	for _, want := range []string{`"component":"store"`, `"loop_id":"loop_abc"`, `"error":"boom"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestRecordStoreOperation(t *testing.T) {
	tel := Disabled()
	ctx := tel.WithContext(context.Background())

	boom := errors.New("boom")
	err := RecordStoreOperation(ctx, "badger", "get_loop", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("RecordStoreOperation() = %v, want boom", err)
	}

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestLoggerDomainFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LoggingConfig{Level: "info", Format: "json"})

	logger.WithOperator("avoid").WithEpoch("mapping").WithBatchID("batch-1").
		WithOutcome(true, 3, false).Info("Target avoided")
	logger.Debug("below the configured level")

	out := buf.String()
	for _, want := range []string{
		`"operator":"avoid"`, `"epoch":"mapping"`, `"batch_id":"batch-1"`,
		`"success":true`, `"attempts":3`, `"partial":false`, `"message":"Target avoided"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "below the configured level") {
		t.Errorf("debug entry written at info level: %s", out)
	}
}
