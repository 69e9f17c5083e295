// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Subsystems take a named child logger:
//
//	logger := logging.NewDefault()
//	brokerLog := logger.Component("broker")
//	brokerLog.Debug("session reserved", zap.Int("session", id))
package logging
