// Package logging provides structured logging for PrintLink Core.
//
// It wraps log/slog so every entry carries the service name and version:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("printer").Info("connected", "device_id", id)
//
// Never log access tokens. The cloud token is the only credential the
// printer link needs and it grants full control of the printer.
package logging
