// Package telemetry provides observability instrumentation for loop generation.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing behind a single
// Telemetry value that travels in the context.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Library code that runs without a configured instance can use Disabled,
// which discards logs and turns every recorder into a no-op.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("operators")
//	logger = logger.WithOperator("cause").WithLoopID(id)
//	logger.Info("Target event reached")
//
// Packages that accept a zerolog.Logger directly receive one through
// Logger.Zerolog.
//
// # Tracing
//
// Spans are opened per operator execution, per batch, and per store call:
//
//	ctx, span := tel.Tracer.StartOperatorSpan(ctx, "avoid")
//	defer span.End()
//
// Supported exporters: "otlp" (gRPC), "stdout" (written to stderr), "none".
//
// # Metrics
//
// Metrics use a private registry so that tests can create several instances.
// Key series:
//
//   - loop_operator_runs_total{operator,status}
//   - loop_operator_duration_seconds{operator}
//   - loop_loops_created_total{epoch}
//   - loop_simulations_total{result}
//   - loop_batch_loops_total{status}
//   - loop_store_operations_total{backend,operation}
//   - loop_graph_lint_violations_total{policy,severity}
//   - loop_active_batches
//
// # Events
//
// Events announce stored loops, operator outcomes, batch progress, graph
// reloads, lint violations and integrity issues. Subscribers receive them
// through optional filters:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// # Context Helpers
//
//	ic := telemetry.StartOperation(ctx, "graph.validate")
//	defer ic.End(err)
//
//	ctx = telemetry.WithBatchContext(ctx, batchID, count)
//	defer telemetry.EndBatchContext(ctx, batchID, ok, failed, err)
//
//	err := telemetry.RecordStoreOperation(ctx, "sqlite", "create_loop", fn)
package telemetry
