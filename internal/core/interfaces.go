package core

import "time"

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// MetricsCollector records pipeline observations.
type MetricsCollector interface {
	RecordModelLoad(model string, duration time.Duration, success bool)
	RecordPrediction(endpoint, model string, duration time.Duration, kind Kind, success bool)
	RecordFetch(duration time.Duration, success bool)
}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordModelLoad(model string, duration time.Duration, success bool) {}
func (*NopMetrics) RecordPrediction(endpoint, model string, duration time.Duration, kind Kind, success bool) {
}
func (*NopMetrics) RecordFetch(duration time.Duration, success bool) {}
