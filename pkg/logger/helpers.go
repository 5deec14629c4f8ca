package logger

import "time"

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, fields map[string]interface{}) {
	l = OrDefault(l).WithComponent(component)
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	OrDefault(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogTransition logs a driver state change
func LogTransition(l Logger, from, to string) {
	OrDefault(l).DebugWithFields("State transition", map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// LogGeneration logs the outcome of one generation request
func LogGeneration(l Logger, prompt, path string, width, height int, elapsed time.Duration, err error) {
	fields := map[string]interface{}{
		"prompt_chars": len(prompt),
		"path":         path,
		"duration":     elapsed,
	}

	l = OrDefault(l).WithFields(fields)
	if err != nil {
		l.WithError(err).Error("Generation failed")
		return
	}
	l.InfoWithFields("Generation completed", map[string]interface{}{
		"width":  width,
		"height": height,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithComponent(name string) Logger                          { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
