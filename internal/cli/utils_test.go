package cli

import (
	"testing"
	"time"

	"github.com/danpasecinic/reservable/internal/types"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int
		expected string
	}{
		{"30 seconds", 30, "30s"},
		{"1 minute", 60, "1m"},
		{"2 minutes", 120, "2m"},
		{"1 hour", 3600, "1h"},
		{"2 hours", 7200, "2h"},
		{"1 day", 86400, "1d"},
		{"2 days", 172800, "2d"},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				result := formatDuration(time.Duration(tt.seconds) * time.Second)
				if result != tt.expected {
					t.Errorf("formatDuration(%d seconds) = %v, want %v", tt.seconds, result, tt.expected)
				}
			},
		)
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected types.Requirement
		wantErr  bool
	}{
		{
			name:     "label and prefix",
			input:    "db:DB",
			expected: types.Requirement{Label: "db", VariablePrefix: "DB"},
		},
		{
			name:     "derived prefix",
			input:    "linux-x64",
			expected: types.Requirement{Label: "linux-x64", VariablePrefix: "LINUX_X64"},
		},
		{
			name:     "empty prefix after colon",
			input:    "cache:",
			expected: types.Requirement{Label: "cache", VariablePrefix: "CACHE"},
		},
		{
			name:     "surrounding spaces",
			input:    "  db : PRIMARY ",
			expected: types.Requirement{Label: "db", VariablePrefix: "PRIMARY"},
		},
		{
			name:    "empty label",
			input:   ":DB",
			wantErr: true,
		},
		{
			name:    "two labels",
			input:   "db linux:DB",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got, err := parseRequirement(tt.input)
				if (err != nil) != tt.wantErr {
					t.Fatalf("parseRequirement(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				}
				if !tt.wantErr && got != tt.expected {
					t.Errorf("parseRequirement(%q) = %+v, want %+v", tt.input, got, tt.expected)
				}
			},
		)
	}
}

func TestEnvLines(t *testing.T) {
	lines := envLines(map[string]string{"DB_PORT": "5432", "CACHE_NODE_NAME": "cache-1", "DB_NODE_NAME": "db-1"})
	want := []string{"CACHE_NODE_NAME=cache-1", "DB_NODE_NAME=db-1", "DB_PORT=5432"}

	if len(lines) != len(want) {
		t.Fatalf("envLines() returned %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %s, want %s", i, lines[i], want[i])
		}
	}
}
