// Package logger provides structured logging for the report filter engine
// using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying run and stage fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("reportflow").WithComponent("executor")
//	log.Info("run completed", logger.Fields(logger.FieldRunID, id, logger.FieldStatus, "ok"))
package logger
