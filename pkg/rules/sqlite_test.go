package rules

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillshield/sdk/pkg/scan"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "rules.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateProposalIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateProposal(ctx, RuleProposal{
		Source:           "cve-feed",
		SourceID:         "CVE-2026-1234",
		Title:            "Pipe to shell",
		Description:      "Remote installer piped to shell",
		Severity:         scan.SeverityHigh,
		SuggestedPattern: `curl.*\|\s*sh`,
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	second, err := store.CreateProposal(ctx, RuleProposal{
		Source:           "cve-feed",
		SourceID:         "CVE-2026-1234",
		Title:            "Different title, same upstream item",
		SuggestedPattern: `other`,
	})
	if err != nil {
		t.Fatalf("CreateProposal repeat: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("repeat ingestion created new proposal: %s vs %s", second.ID, first.ID)
	}
	if second.Title != "Pipe to shell" {
		t.Errorf("repeat ingestion overwrote existing record: %q", second.Title)
	}

	pending, err := store.ListProposals(ctx, ProposalPending)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending proposals, want 1", len(pending))
	}
}

func TestReviewApproveCreatesActiveRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proposal, err := store.CreateProposal(ctx, RuleProposal{
		Source:            "manual",
		SourceID:          "m-1",
		Title:             "Base64 loader",
		Description:       strings.Repeat("d", 600),
		Severity:          scan.SeverityCritical,
		SuggestedPattern:  `base64\s+-d`,
		SuggestedDetector: "malicious_dependency",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	outcome, err := store.Review(ctx, []ReviewDecision{{
		ProposalID:      proposal.ID,
		Action:          ActionApprove,
		PatternOverride: `base64\s+(-d|--decode)`,
	}})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if outcome.Approved != 1 || len(outcome.CreatedRuleIDs) != 1 {
		t.Fatalf("outcome = %+v, want 1 approval", outcome)
	}

	active, err := store.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active rules, want 1", len(active))
	}

	rule := active[0]
	if rule.Pattern != `base64\s+(-d|--decode)` {
		t.Errorf("pattern override not applied: %q", rule.Pattern)
	}
	if len(rule.Description) != maxRuleDescription {
		t.Errorf("description length = %d, want clamped to %d", len(rule.Description), maxRuleDescription)
	}
	if rule.SourceProposalID != proposal.ID {
		t.Errorf("rule not linked to proposal: %q", rule.SourceProposalID)
	}
	if rule.Severity != scan.SeverityCritical {
		t.Errorf("severity = %q", rule.Severity)
	}

	reviewed, err := store.ListProposals(ctx, ProposalApproved)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(reviewed) != 1 || reviewed[0].ReviewedAt == nil {
		t.Errorf("proposal not marked approved with timestamp: %+v", reviewed)
	}
}

func TestReviewRejectAndSkip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proposal, err := store.CreateProposal(ctx, RuleProposal{
		Source: "manual", SourceID: "m-2", Title: "t",
		SuggestedPattern: `p`,
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	outcome, err := store.Review(ctx, []ReviewDecision{
		{ProposalID: proposal.ID, Action: ActionReject},
		{ProposalID: "missing-id", Action: ActionApprove},
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if outcome.Rejected != 1 || outcome.Skipped != 1 {
		t.Errorf("outcome = %+v, want 1 rejected, 1 skipped", outcome)
	}

	// A second decision on the same proposal is skipped, not re-applied.
	outcome, err = store.Review(ctx, []ReviewDecision{
		{ProposalID: proposal.ID, Action: ActionApprove},
	})
	if err != nil {
		t.Fatalf("Review repeat: %v", err)
	}
	if outcome.Skipped != 1 || outcome.Approved != 0 {
		t.Errorf("reviewed proposal re-processed: %+v", outcome)
	}

	active, err := store.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("rejection created %d rules", len(active))
	}
}

func TestSetRuleActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule, err := store.CreateRule(ctx, ApprovedRule{
		Title: "t", Description: "d", Severity: scan.SeverityLow,
		Pattern: `p`, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := store.SetRuleActive(ctx, rule.ID, false); err != nil {
		t.Fatalf("SetRuleActive: %v", err)
	}

	active, err := store.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("deactivated rule still listed")
	}

	if err := store.SetRuleActive(ctx, "no-such-rule", true); err == nil {
		t.Error("expected error for unknown rule")
	}
}
