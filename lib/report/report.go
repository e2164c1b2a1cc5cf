// Package report decouples failure reporting from request handling. The
// orchestrator reports upstream and internal failures here; clients only
// ever receive a generic fetch error.
package report

import "go.uber.org/zap"

// Reporter receives failures worth an operator's attention.
type Reporter interface {
	Report(err error, fields ...zap.Field)
}

// LogReporter reports through the service logger.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log.Named("report")}
}

func (r *LogReporter) Report(err error, fields ...zap.Field) {
	r.log.Error("upstream failure", append(fields, zap.Error(err))...)
}

// Nop discards every report.
type Nop struct{}

func (Nop) Report(error, ...zap.Field) {}
