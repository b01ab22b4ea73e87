package timestream

import (
	"testing"
	"time"
)

func TestEscapeStringLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain address", "0x1c8b9B78e3085866521FE206fa4c1a67F49f153A", "0x1c8b9B78e3085866521FE206fa4c1a67F49f153A"},
		{"empty", "", ""},
		{"single quote", "o'malley", "o''malley"},
		{"injection attempt", "x' OR '1'='1", "x'' OR ''1''=''1"},
		{"already doubled", "a''b", "a''''b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeStringLiteral(tt.input); got != tt.want {
				t.Errorf("escapeStringLiteral(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimestreamTime(t *testing.T) {
	ts, err := parseTimestreamTime("2025-06-01 12:30:45.123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("parsed %v, want %v", ts, want)
	}

	if _, err := parseTimestreamTime("not a timestamp"); err == nil {
		t.Error("expected error for unparsable timestamp")
	}
}
