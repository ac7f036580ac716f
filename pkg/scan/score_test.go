package scan

import "testing"

func TestSeverityWeight(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 40},
		{SeverityHigh, 25},
		{SeverityMedium, 10},
		{SeverityLow, 5},
		{Severity("BOGUS"), 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := tt.severity.Weight(); got != tt.want {
				t.Errorf("Weight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeverityFromString(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
	}{
		{"CRITICAL", SeverityCritical},
		{"critical", SeverityCritical},
		{" High ", SeverityHigh},
		{"medium", SeverityMedium},
		{"LOW", SeverityLow},
		{"", SeverityMedium},
		{"severe", Severity("SEVERE")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SeverityFromString(tt.input); got != tt.want {
				t.Errorf("SeverityFromString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	// A passed-through unknown severity deducts the LOW weight.
	if got := SeverityFromString("severe").Weight(); got != 5 {
		t.Errorf("unknown severity Weight() = %d, want 5", got)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		issues []Issue
		want   int
	}{
		{"no issues", nil, 100},
		{"one critical one high", []Issue{
			{Severity: SeverityCritical},
			{Severity: SeverityHigh},
		}, 35},
		{"three criticals floor at zero", []Issue{
			{Severity: SeverityCritical},
			{Severity: SeverityCritical},
			{Severity: SeverityCritical},
		}, 0},
		{"two mediums", []Issue{
			{Severity: SeverityMedium},
			{Severity: SeverityMedium},
		}, 80},
		{"one low", []Issue{{Severity: SeverityLow}}, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.issues); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		score int
		want  Recommendation
	}{
		{100, RecommendationSafe},
		{80, RecommendationSafe},
		{79, RecommendationCaution},
		{40, RecommendationCaution},
		{39, RecommendationDangerous},
		{0, RecommendationDangerous},
	}

	for _, tt := range tests {
		if got := Recommend(tt.score); got != tt.want {
			t.Errorf("Recommend(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestDeduplicate(t *testing.T) {
	t.Run("first occurrence wins", func(t *testing.T) {
		issues := []Issue{
			{Type: "exfiltration", Line: 3, Description: "first", Snippet: "a"},
			{Type: "exfiltration", Line: 3, Description: "first", Snippet: "b"},
			{Type: "exfiltration", Line: 4, Description: "first"},
		}
		got := Deduplicate(issues)
		if len(got) != 2 {
			t.Fatalf("got %d issues, want 2", len(got))
		}
		if got[0].Snippet != "a" {
			t.Errorf("kept snippet %q, want the first occurrence", got[0].Snippet)
		}
	})

	t.Run("differs beyond 50 chars collapses", func(t *testing.T) {
		prefix := "this description is long enough to exceed fifty ch"
		issues := []Issue{
			{Type: "rce", Line: 1, Description: prefix + "ars variant one"},
			{Type: "rce", Line: 1, Description: prefix + "ars variant two"},
		}
		got := Deduplicate(issues)
		if len(got) != 1 {
			t.Errorf("got %d issues, want 1", len(got))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		issues := []Issue{
			{Type: "a", Line: 1, Description: "x"},
			{Type: "a", Line: 1, Description: "x"},
			{Type: "b", Line: 2, Description: "y"},
		}
		once := Deduplicate(issues)
		twice := Deduplicate(once)
		if len(once) != len(twice) {
			t.Errorf("second pass changed length: %d vs %d", len(once), len(twice))
		}
	})

	t.Run("preserves order", func(t *testing.T) {
		issues := []Issue{
			{Type: "c", Line: 9, Description: "third-file finding"},
			{Type: "a", Line: 1, Description: "first-file finding"},
		}
		got := Deduplicate(issues)
		if got[0].Type != "c" || got[1].Type != "a" {
			t.Errorf("order not preserved: %v", got)
		}
	})
}
