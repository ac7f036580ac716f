// Package store persists scan results. It backs the result cache (skip
// re-scanning a repository scanned recently) and keeps a scan history
// per skill URL. Issue payloads are stored zstd-compressed.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/skillshield/sdk/pkg/compress"
	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
	"github.com/skillshield/sdk/pkg/scan"
)

// ScanStore is a SQLite-backed scan result store.
type ScanStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	codec  *compress.Codec
	logger core.Logger
}

// NewScanStore opens (or creates) the scan database at path.
func NewScanStore(path string, logger core.Logger) (*ScanStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scan database: %w", err)
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

	s := &ScanStore{
		db:     db,
		codec:  compress.Default,
		logger: core.LoggerOrNop(logger),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *ScanStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		skill_url TEXT NOT NULL,
		score INTEGER NOT NULL,
		recommendation TEXT NOT NULL,
		issues BLOB NOT NULL,
		scan_time_ms INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_scans_skill_url ON scans(skill_url, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save persists one scan result.
func (s *ScanStore) Save(ctx context.Context, result *scan.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(result.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	compressed, err := s.codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("compress issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, skill_url, score, recommendation, issues, scan_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(), result.SkillURL, result.Score,
		string(result.Recommendation), compressed, result.ScanTimeMs,
		time.Now().UTC(),
	)
	return err
}

// Latest returns the most recent result for skillURL no older than
// maxAge, marked Cached. A maxAge of zero disables the age filter.
// Returns ErrNotFound when no matching scan exists.
func (s *ScanStore) Latest(ctx context.Context, skillURL string, maxAge time.Duration) (*scan.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT skill_url, score, recommendation, issues, scan_time_ms
		FROM scans
		WHERE skill_url = ?
	`
	args := []interface{}{skillURL}
	if maxAge > 0 {
		query += ` AND created_at >= ?`
		args = append(args, time.Now().UTC().Add(-maxAge))
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	var result scan.Result
	var recommendation string
	var compressed []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&result.SkillURL, &result.Score, &recommendation,
		&compressed, &result.ScanTimeMs,
	)
	if err == sql.ErrNoRows {
		return nil, serrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	payload, err := s.codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress issues: %w", err)
	}
	if err := json.Unmarshal(payload, &result.Issues); err != nil {
		return nil, fmt.Errorf("unmarshal issues: %w", err)
	}

	result.Recommendation = scan.Recommendation(recommendation)
	result.Cached = true
	return &result, nil
}

// History returns up to limit results for skillURL, newest first.
func (s *ScanStore) History(ctx context.Context, skillURL string, limit int) ([]*scan.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT skill_url, score, recommendation, issues, scan_time_ms
		FROM scans
		WHERE skill_url = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, skillURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*scan.Result
	for rows.Next() {
		var result scan.Result
		var recommendation string
		var compressed []byte

		if err := rows.Scan(
			&result.SkillURL, &result.Score, &recommendation,
			&compressed, &result.ScanTimeMs,
		); err != nil {
			return nil, err
		}

		payload, err := s.codec.Decompress(compressed)
		if err != nil {
			return nil, fmt.Errorf("decompress issues: %w", err)
		}
		if err := json.Unmarshal(payload, &result.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}

		result.Recommendation = scan.Recommendation(recommendation)
		result.Cached = true
		results = append(results, &result)
	}
	return results, rows.Err()
}

// Cleanup removes scans older than maxAge and returns the count removed.
func (s *ScanStore) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM scans WHERE created_at < ?
	`, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the store.
func (s *ScanStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}
