package rules

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
	"github.com/skillshield/sdk/pkg/scan"
)

// maxRuleDescription caps the description copied from a proposal into an
// approved rule.
const maxRuleDescription = 500

// SQLiteStore persists approved rules and rule proposals.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger core.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the rule database at path.
func NewSQLiteStore(path string, logger core.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create rules directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open rules database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: core.LoggerOrNop(logger),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS approved_rules (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		detector_type TEXT NOT NULL DEFAULT '',
		pattern TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		source_proposal_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rule_proposals (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		suggested_pattern TEXT NOT NULL,
		suggested_detector TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		reviewed_at TIMESTAMP,
		UNIQUE(source, source_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rules_active ON approved_rules(active);
	CREATE INDEX IF NOT EXISTS idx_proposals_status ON rule_proposals(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ListActiveRules returns the active rule set in creation order.
func (s *SQLiteStore) ListActiveRules(ctx context.Context) ([]ApprovedRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, severity, detector_type, pattern,
			active, source_proposal_id, created_at
		FROM approved_rules
		WHERE active = 1
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRules(rows)
}

// CreateRule inserts a rule directly, bypassing the proposal flow. An
// empty ID is assigned a fresh UUID.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule ApprovedRule) (ApprovedRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertRule(ctx, rule)
}

func (s *SQLiteStore) insertRule(ctx context.Context, rule ApprovedRule) (ApprovedRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if len(rule.Description) > maxRuleDescription {
		rule.Description = rule.Description[:maxRuleDescription]
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approved_rules (
			id, title, description, severity, detector_type, pattern,
			active, source_proposal_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.ID, rule.Title, rule.Description, string(rule.Severity),
		rule.DetectorType, rule.Pattern, boolToInt(rule.Active),
		nullString(rule.SourceProposalID), rule.CreatedAt,
	)
	if err != nil {
		return ApprovedRule{}, err
	}
	return rule, nil
}

// SetRuleActive flips a rule's active flag. Deactivated rules stop
// applying at the next scan.
func (s *SQLiteStore) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE approved_rules SET active = ? WHERE id = ?
	`, boolToInt(active), ruleID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, serrors.ErrNotFound)
	}
	return nil
}

// CreateProposal ingests a proposal. If a proposal with the same
// (source, source_id) already exists, the existing record is returned
// unchanged and no new row is created.
func (s *SQLiteStore) CreateProposal(ctx context.Context, proposal RuleProposal) (RuleProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.proposalBySource(ctx, proposal.Source, proposal.SourceID); err == nil {
		return existing, nil
	} else if err != sql.ErrNoRows {
		return RuleProposal{}, err
	}

	if proposal.ID == "" {
		proposal.ID = uuid.New().String()
	}
	if proposal.Status == "" {
		proposal.Status = ProposalPending
	}
	if proposal.Severity == "" {
		proposal.Severity = scan.SeverityMedium
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_proposals (
			id, source, source_id, title, description, severity,
			suggested_pattern, suggested_detector, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		proposal.ID, proposal.Source, proposal.SourceID, proposal.Title,
		proposal.Description, string(proposal.Severity),
		proposal.SuggestedPattern, proposal.SuggestedDetector,
		string(proposal.Status), proposal.CreatedAt,
	)
	if err != nil {
		return RuleProposal{}, err
	}
	return proposal, nil
}

// ListProposals returns proposals with the given status, oldest first.
// An empty status returns all proposals.
func (s *SQLiteStore) ListProposals(ctx context.Context, status ProposalStatus) ([]RuleProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, source, source_id, title, description, severity,
			suggested_pattern, suggested_detector, status, created_at, reviewed_at
		FROM rule_proposals
	`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []RuleProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// Review applies a batch of admin decisions. Approvals create an active
// ApprovedRule from the proposal (pattern override honored, description
// clamped); rejections only mark the proposal. Decisions that reference
// missing or already reviewed proposals are counted as skipped, and the
// rest of the batch proceeds.
func (s *SQLiteStore) Review(ctx context.Context, decisions []ReviewDecision) (*ReviewOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := &ReviewOutcome{}
	now := time.Now().UTC()

	for _, decision := range decisions {
		proposal, err := s.proposalByID(ctx, decision.ProposalID)
		if err == sql.ErrNoRows {
			s.logger.Warn("review: proposal %s not found, skipping", decision.ProposalID)
			outcome.Skipped++
			continue
		}
		if err != nil {
			return outcome, err
		}
		if proposal.Status != ProposalPending {
			s.logger.Warn("review: proposal %s already %s, skipping", proposal.ID, proposal.Status)
			outcome.Skipped++
			continue
		}

		switch decision.Action {
		case ActionApprove:
			pattern := proposal.SuggestedPattern
			if decision.PatternOverride != "" {
				pattern = decision.PatternOverride
			}
			rule, err := s.insertRule(ctx, ApprovedRule{
				Title:            proposal.Title,
				Description:      proposal.Description,
				Severity:         proposal.Severity,
				DetectorType:     proposal.SuggestedDetector,
				Pattern:          pattern,
				Active:           true,
				SourceProposalID: proposal.ID,
			})
			if err != nil {
				return outcome, err
			}
			if err := s.setProposalStatus(ctx, proposal.ID, ProposalApproved, now); err != nil {
				return outcome, err
			}
			outcome.Approved++
			outcome.CreatedRuleIDs = append(outcome.CreatedRuleIDs, rule.ID)
			s.logger.Info("approved proposal %s as rule %s", proposal.ID, rule.ID)

		case ActionReject:
			if err := s.setProposalStatus(ctx, proposal.ID, ProposalRejected, now); err != nil {
				return outcome, err
			}
			outcome.Rejected++
			s.logger.Info("rejected proposal %s", proposal.ID)

		default:
			s.logger.Warn("review: unknown action %q for proposal %s, skipping", decision.Action, proposal.ID)
			outcome.Skipped++
		}
	}

	return outcome, nil
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

func (s *SQLiteStore) proposalByID(ctx context.Context, id string) (RuleProposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_id, title, description, severity,
			suggested_pattern, suggested_detector, status, created_at, reviewed_at
		FROM rule_proposals WHERE id = ?
	`, id)
	return scanProposal(row)
}

func (s *SQLiteStore) proposalBySource(ctx context.Context, source, sourceID string) (RuleProposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_id, title, description, severity,
			suggested_pattern, suggested_detector, status, created_at, reviewed_at
		FROM rule_proposals WHERE source = ? AND source_id = ?
	`, source, sourceID)
	return scanProposal(row)
}

func (s *SQLiteStore) setProposalStatus(ctx context.Context, id string, status ProposalStatus, reviewedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rule_proposals SET status = ?, reviewed_at = ? WHERE id = ?
	`, string(status), reviewedAt, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRules(rows *sql.Rows) ([]ApprovedRule, error) {
	var ruleSet []ApprovedRule
	for rows.Next() {
		var rule ApprovedRule
		var severity string
		var active int
		var sourceProposal sql.NullString

		if err := rows.Scan(
			&rule.ID, &rule.Title, &rule.Description, &severity,
			&rule.DetectorType, &rule.Pattern, &active,
			&sourceProposal, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}

		rule.Severity = scan.Severity(severity)
		rule.Active = active != 0
		if sourceProposal.Valid {
			rule.SourceProposalID = sourceProposal.String
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, rows.Err()
}

func scanProposal(row rowScanner) (RuleProposal, error) {
	var p RuleProposal
	var severity, status string
	var reviewedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.Title, &p.Description, &severity,
		&p.SuggestedPattern, &p.SuggestedDetector, &status, &p.CreatedAt,
		&reviewedAt,
	)
	if err != nil {
		return RuleProposal{}, err
	}

	p.Severity = scan.Severity(severity)
	p.Status = ProposalStatus(status)
	if reviewedAt.Valid {
		p.ReviewedAt = &reviewedAt.Time
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
