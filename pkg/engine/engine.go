// Package engine orchestrates skill scans: fetch files, run static
// detectors and dynamic rules, run semantic analysis, then deduplicate,
// score, and recommend.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
	"github.com/skillshield/sdk/pkg/fetch"
	"github.com/skillshield/sdk/pkg/metrics"
	"github.com/skillshield/sdk/pkg/rules"
	"github.com/skillshield/sdk/pkg/scan"
)

// SemanticAnalyzer is the engine's view of the semantic analysis layer.
// It is best-effort: implementations return whatever issues they can and
// never fail the scan.
type SemanticAnalyzer interface {
	Analyze(ctx context.Context, content, filename string) []scan.Issue
}

// Config configures a scan engine.
type Config struct {
	// Fetcher retrieves skill files. Required.
	Fetcher fetch.Fetcher

	// Rules supplies the dynamic rule set. Nil disables dynamic rules.
	Rules rules.Store

	// Analyzer runs semantic analysis. Nil disables it.
	Analyzer SemanticAnalyzer

	// Logger for scan progress. Nil means silent.
	Logger core.Logger

	// Collector for scan metrics. Nil means no metrics.
	Collector metrics.Collector
}

// Engine runs the full scan pipeline. Safe for concurrent use; Close is
// idempotent and any Scan after Close fails with ErrClosed.
type Engine struct {
	fetcher   fetch.Fetcher
	rules     rules.Store
	analyzer  SemanticAnalyzer
	logger    core.Logger
	collector metrics.Collector

	mu     sync.RWMutex
	closed bool
}

// New creates a scan engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, serrors.E(serrors.KindInvalidInput, "engine.New", "fetcher is required")
	}
	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NopCollector{}
	}
	return &Engine{
		fetcher:   cfg.Fetcher,
		rules:     cfg.Rules,
		analyzer:  cfg.Analyzer,
		logger:    core.LoggerOrNop(cfg.Logger),
		collector: collector,
	}, nil
}

// Scan runs the pipeline for one skill URL. It returns an error only
// when the engine is closed; every other failure degrades into issues on
// the result so callers always get a scored verdict.
func (e *Engine) Scan(ctx context.Context, skillURL string) (*scan.Result, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, serrors.ErrClosed
	}
	e.mu.RUnlock()

	start := time.Now()
	e.logger.Info("scanning %s", skillURL)

	files, err := e.fetcher.FetchFiles(ctx, skillURL)
	if err != nil {
		e.logger.Error("fetch failed for %s: %v", skillURL, err)
		e.collector.CounterInc(metrics.FetchErrorsTotal.Name, "platform", "all")
		e.collector.CounterInc(metrics.ScansTotal.Name, "status", "fetch_error")
		return e.finish(skillURL, []scan.Issue{{
			Type:        scan.TypeFetchError,
			Severity:    scan.SeverityHigh,
			Line:        0,
			Description: fmt.Sprintf("Could not fetch skill files: %v", err),
		}}, start), nil
	}
	e.collector.CounterAdd(metrics.FetchFilesTotal.Name, float64(len(files)), "platform", "all")

	compiled := e.ruleSnapshot(ctx)

	var issues []scan.Issue
	for _, file := range files {
		issues = append(issues, scan.RunDetectors(file.Content, file.Path)...)
		issues = append(issues, rules.EvaluateAll(compiled, file.Content, file.Path)...)
		if e.analyzer != nil {
			issues = append(issues, e.analyzer.Analyze(ctx, file.Content, file.Path)...)
		}
	}

	e.collector.CounterInc(metrics.ScansTotal.Name, "status", "success")
	return e.finish(skillURL, issues, start), nil
}

// ruleSnapshot reads the active rule set once per scan. A store failure
// means the scan runs without dynamic rules, not that it fails.
func (e *Engine) ruleSnapshot(ctx context.Context) []rules.CompiledRule {
	if e.rules == nil {
		return nil
	}

	ruleSet, err := e.rules.ListActiveRules(ctx)
	if err != nil {
		e.logger.Warn("loading dynamic rules failed, scanning without them: %v", err)
		return nil
	}

	compiled := rules.Compile(ruleSet, e.logger)
	e.collector.GaugeSet(metrics.DynamicRulesActive.Name, float64(len(compiled)))
	return compiled
}

// finish deduplicates, scores, and assembles the result.
func (e *Engine) finish(skillURL string, issues []scan.Issue, start time.Time) *scan.Result {
	unique := scan.Deduplicate(issues)
	score := scan.Score(unique)
	elapsed := time.Since(start)

	for _, issue := range unique {
		e.collector.CounterInc(metrics.ScanIssuesTotal.Name,
			"type", issue.Type, "severity", string(issue.Severity))
	}
	e.collector.HistogramObserve(metrics.ScanDuration.Name, elapsed.Seconds())

	result := &scan.Result{
		SkillURL:       skillURL,
		Score:          score,
		Recommendation: scan.Recommend(score),
		Issues:         unique,
		ScanTimeMs:     elapsed.Milliseconds(),
	}
	e.logger.Info("scan of %s done: score %d (%s), %d issues in %dms",
		skillURL, result.Score, result.Recommendation, len(result.Issues), result.ScanTimeMs)
	return result
}

// Close shuts the engine down and releases the fetcher. Further Scan
// calls fail with ErrClosed. Calling Close twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.fetcher.Close()
}
