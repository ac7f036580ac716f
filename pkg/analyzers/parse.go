package analyzers

import (
	"encoding/json"
	"strings"

	"github.com/skillshield/sdk/pkg/scan"
)

// responsePayload is the wire shape providers are asked to produce: one
// JSON object with the issue list under "issues".
type responsePayload struct {
	Issues []issuePayload `json:"issues"`
}

// issuePayload is a single issue on the wire. Every field is optional;
// missing fields take documented defaults.
type issuePayload struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Line        int    `json:"line"`
	Description string `json:"description"`
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag. Models add these despite instructions not to.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseIssues decodes a provider response into issues. Defaults for
// missing fields: type "unknown", severity MEDIUM, line 0, and a
// placeholder description. A severity outside the known set is kept
// verbatim and weighs like LOW when scored. Snippets stay empty for
// semantic findings.
func parseIssues(raw string) ([]scan.Issue, error) {
	var payload responsePayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, err
	}

	issues := make([]scan.Issue, 0, len(payload.Issues))
	for _, p := range payload.Issues {
		issueType := p.Type
		if issueType == "" {
			issueType = "unknown"
		}
		description := p.Description
		if description == "" {
			description = "Semantic analysis finding"
		}
		issues = append(issues, scan.Issue{
			Type:        issueType,
			Severity:    scan.SeverityFromString(p.Severity),
			Line:        p.Line,
			Description: description,
		})
	}
	return issues, nil
}
