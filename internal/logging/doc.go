// Package logging builds the process logger: zap with a redacting stdout
// encoder, an optional OpenTelemetry bridge and level-aware sampling.
//
// Logger methods take a context and prepend its correlation fields
// (trace_id, span_id, session.id, request.id):
//
//	cfg, err := logging.FromConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "turn answered", zap.Int("passages", n))
//
// Packages that take a plain *zap.Logger get logger.Underlying().
package logging
