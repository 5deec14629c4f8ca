// Package logger provides structured logging for gemimg.
//
// It wraps zerolog behind a small Logger interface so components can accept a
// logger, tests can swap in NewNopLogger or NewTestLogger, and the CLI can
// configure one global instance:
//
//	cfg := &config.LoggingConfig{Level: "debug", File: "/tmp/gemimg.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	log := logger.GetLogger().WithComponent("driver")
//	log.InfoWithFields("Waiting for image", map[string]interface{}{
//	    "timeout": 120 * time.Second,
//	})
//
// Console output goes to stderr. When a file is configured, entries are
// written to both the console and the file.
package logger
