// Package logging wraps log/slog for the bridge daemon.
//
// Every component logs through a *Logger handed down from main, which
// fixes the handler (JSON or text), the destination stream and the
// default service/version fields in one place. Components that only
// need a subset declare their own small logger interface and accept
// anything that satisfies it, so tests can pass a silent logger.
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Child loggers carry component context:
//
//	pollLog := log.With("component", "poll")
//	pollLog.Info("cycle complete", "elements", 42)
//
// Panel credentials and MQTT passwords never go into log records; log
// the host or client id instead of the full settings struct.
package logging
