// Package rules implements admin-approved dynamic detection rules: the
// rule and proposal models, regex evaluation against skill files, and a
// SQLite-backed store.
package rules

import (
	"context"
	"regexp"
	"time"

	"github.com/skillshield/sdk/pkg/core"
	"github.com/skillshield/sdk/pkg/scan"
)

// ApprovedRule is an active detection rule created through the proposal
// review flow (or seeded directly). Its pattern is applied to every
// fetched file alongside the built-in detectors.
type ApprovedRule struct {
	// ID is the rule identifier (UUID).
	ID string `json:"id"`

	// Title is a short admin-facing name.
	Title string `json:"title"`

	// Description becomes the issue description, suffixed to mark its
	// dynamic origin.
	Description string `json:"description"`

	// Severity assigned to issues produced by this rule.
	Severity scan.Severity `json:"severity"`

	// DetectorType is the issue type tag for matches. Empty means the
	// generic insecure_config tag.
	DetectorType string `json:"detector_type"`

	// Pattern is the regular expression applied to file content.
	Pattern string `json:"pattern"`

	// Active rules participate in scans; inactive ones are retained for
	// audit only.
	Active bool `json:"active"`

	// SourceProposalID links back to the proposal this rule came from,
	// if any.
	SourceProposalID string `json:"source_proposal_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Store is the read surface the scan engine needs. The engine snapshots
// the active rule set once per scan; rule changes made mid-scan apply to
// the next scan.
type Store interface {
	ListActiveRules(ctx context.Context) ([]ApprovedRule, error)
}

// CompiledRule pairs a rule with its compiled pattern.
type CompiledRule struct {
	Rule ApprovedRule
	re   *regexp.Regexp
}

// Compile compiles a rule snapshot for evaluation. Rules whose pattern
// fails to compile are skipped with a warning; a bad rule never takes
// down a scan.
func Compile(ruleSet []ApprovedRule, logger core.Logger) []CompiledRule {
	logger = core.LoggerOrNop(logger)

	compiled := make([]CompiledRule, 0, len(ruleSet))
	for _, rule := range ruleSet {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			logger.Warn("skipping dynamic rule %s (%s): invalid pattern: %v", rule.ID, rule.Title, err)
			continue
		}
		compiled = append(compiled, CompiledRule{Rule: rule, re: re})
	}
	return compiled
}

const snippetLen = 60

// Evaluate applies one compiled rule to a file and returns the matches
// as issues. The description carries a "(dynamic rule)" suffix so dynamic
// findings are distinguishable from built-in detector output.
func (c CompiledRule) Evaluate(content, filename string) []scan.Issue {
	var issues []scan.Issue
	for _, loc := range c.re.FindAllStringIndex(content, -1) {
		issueType := c.Rule.DetectorType
		if issueType == "" {
			issueType = scan.TypeInsecureConfig
		}
		snippet := content[loc[0]:loc[1]]
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		issues = append(issues, scan.Issue{
			Type:        issueType,
			Severity:    c.Rule.Severity,
			Line:        scan.LineNumber(content, loc[0]),
			Description: c.Rule.Description + " (dynamic rule)",
			Snippet:     snippet,
		})
	}
	return issues
}

// EvaluateAll applies a compiled rule set to one file in rule order.
func EvaluateAll(compiled []CompiledRule, content, filename string) []scan.Issue {
	var issues []scan.Issue
	for _, rule := range compiled {
		issues = append(issues, rule.Evaluate(content, filename)...)
	}
	return issues
}
