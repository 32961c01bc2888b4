// Package telemetry provides OpenTelemetry instrumentation for esgmetrics.
//
// Traces and metrics are exported over OTLP/HTTP to a collector. Telemetry
// is off by default; enable it in the observability section:
//
//	observability:
//	  enable_telemetry: true
//	  service_name: esgmetrics
//	  endpoint: localhost:4318
//
// Create an instance from the application config:
//
//	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// Failures building a provider do not fail startup; Health reports the
// instance as degraded and the global no-op providers stay in place.
//
// Tests use TestTelemetry, which records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	r, _ := reconcile.NewReconciler(store, remote, reconcile.WithTracer(tt.Tracer("test")))
//	r.Reconcile(ctx, "acme", reconcile.Options{})
//	tt.AssertSpanExists(t, "reconcile.Reconcile")
package telemetry
