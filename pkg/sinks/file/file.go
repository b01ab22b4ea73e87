package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/sinks"
)

// FileSink persists reports as timestamped pretty-printed JSON files in
// a results directory. This is the default sink and the format the
// visualizer reads.
type FileSink struct {
	directory string
}

// FileFactory creates file sink instances.
type FileFactory struct{}

// NewFileFactory creates a new file sink factory.
func NewFileFactory() *FileFactory {
	return &FileFactory{}
}

// CreateSink implements the SinkFactory interface.
func (f *FileFactory) CreateSink(config map[string]interface{}) (sinks.Sink, error) {
	directory := "./results"
	if dir, ok := config["directory"].(string); ok && dir != "" {
		directory = dir
	}

	return NewFileSink(directory), nil
}

// NewFileSink creates a file sink writing into the given directory.
func NewFileSink(directory string) *FileSink {
	return &FileSink{directory: directory}
}

// Initialize implements the Sink interface.
func (s *FileSink) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.directory, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// Close implements the Sink interface.
func (s *FileSink) Close() error {
	return nil
}

// WriteReport implements the Sink interface.
func (s *FileSink) WriteReport(ctx context.Context, r *report.Report) error {
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}

	timestamp := r.Timestamp.Format("20060102-150405")
	filename := fmt.Sprintf("report-%s-%s.json", r.SafeAddress, timestamp)
	path := filepath.Join(s.directory, filename)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}

// QueryReports implements the Sink interface. It walks the results
// directory, skipping files that do not parse as reports.
func (s *FileSink) QueryReports(ctx context.Context, safeAddress string, limit int) ([]*report.Report, error) {
	var reports []*report.Report

	err := filepath.Walk(s.directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		r, err := loadReportFile(path)
		if err != nil {
			return nil
		}
		if safeAddress == "" || r.SafeAddress == safeAddress {
			reports = append(reports, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk results directory: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}

	return reports, nil
}

func loadReportFile(path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	// A report file must at least carry a run ID and timestamp.
	if r.RunID == "" || r.Timestamp.IsZero() {
		return nil, fmt.Errorf("not a report file")
	}

	return &r, nil
}
