// Package scan defines the finding model for skill security scans and the
// pure parts of the pipeline: the static pattern detectors, deduplication,
// and the scoring/recommendation policy.
package scan

import "strings"

// Severity represents the severity of a security issue.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severity weights subtracted from the score per surviving issue.
const (
	weightCritical = 40
	weightHigh     = 25
	weightMedium   = 10
	weightLow      = 5
)

// Weight returns the score deduction for the severity.
// Unrecognized severities (e.g. from a misconfigured dynamic rule or a
// free-form provider response) count as LOW.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return weightCritical
	case SeverityHigh:
		return weightHigh
	case SeverityMedium:
		return weightMedium
	case SeverityLow:
		return weightLow
	default:
		return weightLow
	}
}

// SeverityFromString converts a severity string to a Severity. An
// absent value defaults to MEDIUM. Other values are uppercased and kept
// verbatim, so an unrecognized severity still shows in the finding and
// Weight counts it as LOW.
func SeverityFromString(s string) Severity {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return SeverityMedium
	}
	return Severity(v)
}

// Well-known issue types. The set is open: dynamic rules and semantic
// providers may introduce their own type tags.
const (
	TypeHardcodedCredentials  = "hardcoded_credentials"
	TypeExfiltration          = "exfiltration"
	TypeRemoteCodeExecution   = "remote_code_execution"
	TypePrivilegeEscalation   = "privilege_escalation"
	TypeExposedSecret         = "exposed_secret"
	TypeDockerMisconfig       = "docker_misconfiguration"
	TypePromptInjection       = "prompt_injection"
	TypeMaliciousDependency   = "malicious_dependency"
	TypeInsecureConfig        = "insecure_config"
	TypeFetchError            = "fetch_error"
	TypePartialAnalysis       = "partial_analysis"
)

// Issue is a single security finding. Issues are value objects: created
// once per detection and never mutated afterwards.
type Issue struct {
	// Type is the issue category tag (open enumeration).
	Type string `json:"type"`

	// Severity is one of CRITICAL, HIGH, MEDIUM, LOW.
	Severity Severity `json:"severity"`

	// Line is the 1-based line number, 0 if not line-addressable.
	Line int `json:"line"`

	// Description is human-readable. It must never contain a raw secret
	// value, only a redacted prefix.
	Description string `json:"description"`

	// Snippet is a bounded-length illustrative excerpt, redacted for
	// secret-bearing findings. Empty for semantic-analysis findings.
	Snippet string `json:"snippet"`
}

// Recommendation is the three-tier verdict derived from the score.
type Recommendation string

const (
	RecommendationSafe      Recommendation = "SAFE"
	RecommendationCaution   Recommendation = "CAUTION"
	RecommendationDangerous Recommendation = "DANGEROUS"
)

// Result is the outcome of one scan invocation.
type Result struct {
	// SkillURL is the canonical input identifier (not necessarily validated).
	SkillURL string `json:"skill_url"`

	// Score is the 0-100 safety score.
	Score int `json:"score"`

	// Recommendation is derived from Score alone.
	Recommendation Recommendation `json:"recommendation"`

	// Issues is the ordered, deduplicated finding list.
	Issues []Issue `json:"issues"`

	// ScanTimeMs is the wall-clock duration of the whole pipeline.
	ScanTimeMs int64 `json:"scan_time_ms"`

	// Cached reports whether this result was served from a prior
	// computation. It is set by the caching collaborator, never by the
	// scan engine itself.
	Cached bool `json:"cached"`
}
