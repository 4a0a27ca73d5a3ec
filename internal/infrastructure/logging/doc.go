// Package logging provides structured logging for the IoT core service.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text in development, with service and version fields on
// every entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8000)
//	logger.Error("failed to connect", "error", err)
//
// Never log secrets such as broker passwords or database tokens.
package logging
