package rules

import (
	"time"

	"github.com/skillshield/sdk/pkg/scan"
)

// ProposalStatus is the review state of a rule proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalApproved ProposalStatus = "APPROVED"
	ProposalRejected ProposalStatus = "REJECTED"
)

// RuleProposal is a candidate detection rule awaiting admin review,
// typically ingested from a threat feed.
type RuleProposal struct {
	// ID is the proposal identifier (UUID).
	ID string `json:"id"`

	// Source names the feed or submitter that produced the proposal.
	Source string `json:"source"`

	// SourceID is the upstream identifier. Ingestion is idempotent on
	// (Source, SourceID): re-submitting the same upstream item is a no-op.
	SourceID string `json:"source_id"`

	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    scan.Severity `json:"severity"`

	// SuggestedPattern is the regex the feed proposes. Admins may
	// override it at approval time.
	SuggestedPattern string `json:"suggested_pattern"`

	// SuggestedDetector is the issue type tag the feed proposes.
	SuggestedDetector string `json:"suggested_detector"`

	Status     ProposalStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
}

// ReviewAction is the admin decision for one proposal.
type ReviewAction string

const (
	ActionApprove ReviewAction = "APPROVE"
	ActionReject  ReviewAction = "REJECT"
)

// ReviewDecision is one item of a batch review request.
type ReviewDecision struct {
	ProposalID string       `json:"proposal_id"`
	Action     ReviewAction `json:"action"`

	// PatternOverride replaces the suggested pattern in the created rule
	// when non-empty. Only meaningful for APPROVE.
	PatternOverride string `json:"pattern_override,omitempty"`
}

// ReviewOutcome summarizes a batch review.
type ReviewOutcome struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`

	// Skipped counts decisions that referenced missing or already
	// reviewed proposals.
	Skipped int `json:"skipped"`

	// CreatedRuleIDs lists the rules created by approvals, in decision
	// order.
	CreatedRuleIDs []string `json:"created_rule_ids,omitempty"`
}
