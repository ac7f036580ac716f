package analyzers

import (
	"testing"

	"github.com/skillshield/sdk/pkg/scan"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare json", `{"issues":[]}`, `{"issues":[]}`},
		{"json fence", "```json\n{\"issues\":[]}\n```", `{"issues":[]}`},
		{"plain fence", "```\n{\"issues\":[]}\n```", `{"issues":[]}`},
		{"leading whitespace", "  \n```json\n{\"issues\":[]}\n```\n", `{"issues":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.input); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIssues(t *testing.T) {
	t.Run("full issue", func(t *testing.T) {
		issues, err := parseIssues(`{"issues":[{"type":"prompt_injection","severity":"HIGH","line":7,"description":"hidden instruction"}]}`)
		if err != nil {
			t.Fatalf("parseIssues: %v", err)
		}
		if len(issues) != 1 {
			t.Fatalf("got %d issues, want 1", len(issues))
		}
		got := issues[0]
		if got.Type != "prompt_injection" || got.Severity != scan.SeverityHigh || got.Line != 7 {
			t.Errorf("unexpected issue: %+v", got)
		}
		if got.Snippet != "" {
			t.Errorf("semantic issue has non-empty snippet %q", got.Snippet)
		}
	})

	t.Run("defaults for missing fields", func(t *testing.T) {
		issues, err := parseIssues(`{"issues":[{}]}`)
		if err != nil {
			t.Fatalf("parseIssues: %v", err)
		}
		got := issues[0]
		if got.Type != "unknown" {
			t.Errorf("type = %q, want unknown", got.Type)
		}
		if got.Severity != scan.SeverityMedium {
			t.Errorf("severity = %q, want MEDIUM", got.Severity)
		}
		if got.Line != 0 {
			t.Errorf("line = %d, want 0", got.Line)
		}
		if got.Description == "" {
			t.Error("description should get a placeholder")
		}
	})

	t.Run("unknown severity kept verbatim", func(t *testing.T) {
		issues, err := parseIssues(`{"issues":[{"type":"exfiltration","severity":"severe"}]}`)
		if err != nil {
			t.Fatalf("parseIssues: %v", err)
		}
		if issues[0].Severity != scan.Severity("SEVERE") {
			t.Errorf("severity = %q, want SEVERE", issues[0].Severity)
		}
		if issues[0].Severity.Weight() != 5 {
			t.Errorf("weight = %d, want 5", issues[0].Severity.Weight())
		}
	})

	t.Run("empty issue list", func(t *testing.T) {
		issues, err := parseIssues("```json\n{\"issues\": []}\n```")
		if err != nil {
			t.Fatalf("parseIssues: %v", err)
		}
		if len(issues) != 0 {
			t.Errorf("got %d issues, want 0", len(issues))
		}
	})

	t.Run("missing issues key", func(t *testing.T) {
		issues, err := parseIssues(`{}`)
		if err != nil {
			t.Fatalf("parseIssues: %v", err)
		}
		if len(issues) != 0 {
			t.Errorf("got %d issues, want 0", len(issues))
		}
	})

	t.Run("prose is an error", func(t *testing.T) {
		if _, err := parseIssues("I found no issues in this file."); err == nil {
			t.Error("expected error for non-JSON output")
		}
	})
}
