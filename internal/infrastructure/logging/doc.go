// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// The gate logs one line per bootstrap outcome (ready, missing parameter,
// context conflict, identity failure). The probe logs every aborted
// iteration with the scenario, VU and failing call.
//
// Example Usage:
//
//	logger := logging.NewOrNop("info", false)
//	logger.Info("gate starting", zap.String("port", "8080"))
//	logger.Error("token exchange failed", zap.Error(err))
package logging
