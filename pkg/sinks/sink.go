package sinks

import (
	"context"

	"github.com/safe-tools/origin-report/pkg/report"
)

// Sink defines the standard interface that all report persistence
// backends must satisfy.
type Sink interface {
	// Initialize prepares the backend (connects, checks the target exists).
	Initialize(ctx context.Context) error
	// WriteReport persists one run report.
	WriteReport(ctx context.Context, r *report.Report) error
	// QueryReports returns up to limit reports for a safe address, most
	// recent first. limit <= 0 means backend default.
	QueryReports(ctx context.Context, safeAddress string, limit int) ([]*report.Report, error)
	// Close releases the backend's resources.
	Close() error
}

// SinkFactory creates and configures a specific sink implementation.
type SinkFactory interface {
	// CreateSink creates a new sink instance with the given configuration.
	CreateSink(config map[string]interface{}) (Sink, error)
}
