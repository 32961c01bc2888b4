// Package logging provides structured logging for the esgmetrics services.
//
// # Overview
//
// The package wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Stdout and OpenTelemetry outputs
//   - Automatic context fields (trace_id, tenant.id, task.id, request.id)
//   - Encoder-level redaction of tokens and credentials
//   - Per-level sampling; errors are never sampled
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithScope(ctx, logging.Scope{TenantID: "acme", TaskID: "electricity_consumption"})
//	logger.Warn(ctx, "evidence item skipped", zap.Int("item.index", 2))
//
// Produces:
//
//	{"level":"warn","ts":"2024-03-15T10:30:00.000Z","msg":"evidence item skipped",
//	 "service":"esgmetrics","tenant.id":"acme","task.id":"electricity_consumption","item.index":2}
//
// Loggers travel in the context with WithLogger; FromContext returns a
// no-op logger when none is attached, so library code never needs a nil
// check.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	svc := evidence.NewResolver(evidence.WithLogger(tl.Logger))
//	...
//	tl.AssertLogged(t, zapcore.WarnLevel, "evidence item skipped")
package logging
