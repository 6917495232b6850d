package audit

import "context"

// LogSink writes each event to the process log, redacted.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, ev *Event) error {
	LogEvent(ev)
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }
