// Package telemetry provides logging, tracing, metrics and domain events for
// the rent roll engine.
//
// Logging uses zerolog, tracing uses OpenTelemetry with stdout or OTLP gRPC
// exporters, metrics use a private Prometheus registry, and events are delivered
// to in-process subscribers either synchronously or from a buffered goroutine.
//
// Typical wiring:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	op := tel.StartOperation(ctx, "mutation.UPDATE_VERSION")
//	defer op.End(err)
//	op.Logger.Info("saving")
//
// A disabled metrics or events configuration yields no-op collectors, so callers
// never need nil checks.
package telemetry
