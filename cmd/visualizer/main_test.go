package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/sinks/file"
)

func writeFixtures(t *testing.T, dir string) {
	t.Helper()

	sink := file.NewFileSink(dir)
	ctx := context.Background()
	if err := sink.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	fixtures := []*report.Report{
		{
			RunID:               "run-1",
			SafeAddress:         "0xabc",
			Timestamp:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Success:             true,
			TransactionsFetched: 10,
			WalletConnectCount:  4,
		},
		{
			RunID:               "run-2",
			SafeAddress:         "0xabc",
			Timestamp:           time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC),
			Success:             true,
			TransactionsFetched: 8,
			WalletConnectCount:  2,
		},
		{
			RunID:        "run-3",
			SafeAddress:  "0xdef",
			Timestamp:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
			Success:      false,
			ErrorMessage: "connection refused",
		},
	}
	for _, r := range fixtures {
		if err := sink.WriteReport(ctx, r); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
	}

	// Not reports; loaders must skip them without failing.
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte(`{"foo": 1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadReportsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	collection, err := loadReports(dir, FilterOptions{})
	if err != nil {
		t.Fatalf("loadReports failed: %v", err)
	}

	if len(collection.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(collection.Reports))
	}
	// Oldest first
	for i := 1; i < len(collection.Reports); i++ {
		if collection.Reports[i].Timestamp.Before(collection.Reports[i-1].Timestamp) {
			t.Fatal("expected reports sorted oldest first")
		}
	}

	wantSafes := []string{"0xabc", "0xdef"}
	if len(collection.SafeAddresses) != len(wantSafes) {
		t.Fatalf("expected %d safe addresses, got %d", len(wantSafes), len(collection.SafeAddresses))
	}
	for i, safe := range wantSafes {
		if collection.SafeAddresses[i] != safe {
			t.Errorf("SafeAddresses[%d] = %s, want %s", i, collection.SafeAddresses[i], safe)
		}
	}
}

func TestLoadReportsFilters(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	tests := []struct {
		name    string
		filters FilterOptions
		wantIDs []string
	}{
		{
			name:    "by safe address",
			filters: FilterOptions{SafeAddress: "0xabc"},
			wantIDs: []string{"run-1", "run-2"},
		},
		{
			name:    "by start date",
			filters: FilterOptions{StartTime: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
			wantIDs: []string{"run-3", "run-2"},
		},
		{
			name:    "by end date",
			filters: FilterOptions{EndTime: time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)},
			wantIDs: []string{"run-1"},
		},
		{
			name: "by date range",
			filters: FilterOptions{
				StartTime: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2025, 6, 2, 23, 59, 59, 0, time.UTC),
			},
			wantIDs: []string{"run-3"},
		},
		{
			name: "address and range with no overlap",
			filters: FilterOptions{
				SafeAddress: "0xdef",
				StartTime:   time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collection, err := loadReports(dir, tt.filters)
			if err != nil {
				t.Fatalf("loadReports failed: %v", err)
			}
			if len(collection.Reports) != len(tt.wantIDs) {
				t.Fatalf("expected %d reports, got %d", len(tt.wantIDs), len(collection.Reports))
			}
			for i, id := range tt.wantIDs {
				if collection.Reports[i].RunID != id {
					t.Errorf("Reports[%d].RunID = %s, want %s", i, collection.Reports[i].RunID, id)
				}
			}
		})
	}
}

func TestLoadReportsSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	var path string
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".json" && entry.Name() != "notes.json" && entry.Name() != "broken.json" {
			path = filepath.Join(dir, entry.Name())
			break
		}
	}
	if path == "" {
		t.Fatal("no report fixture found")
	}

	collection, err := loadReports(path, FilterOptions{})
	if err != nil {
		t.Fatalf("loadReports failed: %v", err)
	}
	if len(collection.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(collection.Reports))
	}
}

func TestLoadReportFromFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	os.WriteFile(valid, []byte(`{"runId":"run-9","safeAddress":"0xabc","timestamp":"2025-06-01T12:00:00Z"}`), 0644)
	r, err := loadReportFromFile(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.RunID != "run-9" {
		t.Errorf("unexpected run ID: %s", r.RunID)
	}

	noID := filepath.Join(dir, "noid.json")
	os.WriteFile(noID, []byte(`{"foo":1}`), 0644)
	if _, err := loadReportFromFile(noID); err == nil {
		t.Error("expected error for JSON without a run ID")
	}

	malformed := filepath.Join(dir, "malformed.json")
	os.WriteFile(malformed, []byte(`{not json`), 0644)
	if _, err := loadReportFromFile(malformed); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestShouldIncludeReport(t *testing.T) {
	r := &report.Report{
		RunID:       "run-1",
		SafeAddress: "0xabc",
		Timestamp:   time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		filters FilterOptions
		want    bool
	}{
		{"no filters", FilterOptions{}, true},
		{"matching address", FilterOptions{SafeAddress: "0xabc"}, true},
		{"other address", FilterOptions{SafeAddress: "0xdef"}, false},
		{"before start", FilterOptions{StartTime: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)}, false},
		{"after end", FilterOptions{EndTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, false},
		{"inside range", FilterOptions{
			StartTime: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldIncludeReport(r, tt.filters); got != tt.want {
				t.Errorf("shouldIncludeReport() = %v, want %v", got, tt.want)
			}
		})
	}
}
