package status

import "go.uber.org/zap"

// LogSink writes events to a structured logger. Failures log at warn so a
// default-level logger still surfaces them; successes at info, starts at
// debug to keep per-node chatter out of normal output.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps a logger as a sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(e Event) {
	fields := []zap.Field{
		zap.String("run_id", e.RunID),
		zap.String("category", e.Category),
		zap.String("phase", e.Phase),
	}
	if e.Node != "" {
		fields = append(fields, zap.String("node", e.Node))
	}
	if len(e.Fields) > 0 {
		fields = append(fields, zap.Strings("applied_fields", e.Fields))
	}
	if e.Message != "" {
		fields = append(fields, zap.String("message", e.Message))
	}

	switch e.Type {
	case EventFailed:
		fields = append(fields, zap.String("error", e.Error))
		s.logger.Warn("remediation step failed", fields...)
	case EventSucceeded:
		s.logger.Info("remediation step succeeded", fields...)
	default:
		s.logger.Debug("remediation step started", fields...)
	}
}
