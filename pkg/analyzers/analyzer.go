// Package analyzers implements LLM-backed semantic analysis of skill
// files: the provider interface, the DeepSeek and Claude providers, and
// the failover chain that runs them.
package analyzers

import (
	"context"
	"fmt"

	"github.com/skillshield/sdk/pkg/core"
	"github.com/skillshield/sdk/pkg/metrics"
	"github.com/skillshield/sdk/pkg/scan"
)

// Analyzer is a semantic analysis provider.
type Analyzer interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Available reports whether the provider is configured. Unavailable
	// providers are skipped without counting as failures.
	Available() bool

	// Analyze inspects one file's content and returns semantic issues.
	// The returned issues have empty snippets; line numbers are whatever
	// the model reported.
	Analyze(ctx context.Context, content, filename string) ([]scan.Issue, error)
}

// Chain runs providers in order until one succeeds. Semantic analysis is
// best-effort: if every provider fails or none is configured, the chain
// returns no issues and the scan proceeds on detector output alone.
type Chain struct {
	providers []Analyzer
	logger    core.Logger
	collector metrics.Collector
}

// NewChain builds a failover chain. Provider order is priority order.
func NewChain(logger core.Logger, collector metrics.Collector, providers ...Analyzer) *Chain {
	if collector == nil {
		collector = &metrics.NopCollector{}
	}
	return &Chain{
		providers: providers,
		logger:    core.LoggerOrNop(logger),
		collector: collector,
	}
}

// Analyze runs the chain on one file. Content larger than MaxContentSize
// is truncated before any provider sees it, and a LOW partial_analysis
// issue is appended to the output whenever truncation happened, whether
// or not a provider succeeded.
func (c *Chain) Analyze(ctx context.Context, content, filename string) []scan.Issue {
	originalSize := len(content)
	truncated := false
	if len(content) > MaxContentSize {
		content = content[:MaxContentSize]
		truncated = true
	}

	var issues []scan.Issue
	attempted := false
	for _, provider := range c.providers {
		if !provider.Available() {
			c.logger.Debug("analyzer %s not configured, skipping", provider.Name())
			continue
		}

		if attempted {
			c.collector.CounterInc(metrics.AnalyzerFailoversTotal.Name)
		}
		attempted = true

		result, err := provider.Analyze(ctx, content, filename)
		if err != nil {
			c.collector.CounterInc(metrics.AnalyzerRequestsTotal.Name,
				"provider", provider.Name(), "status", "error")
			c.logger.Warn("analyzer %s failed on %s: %v", provider.Name(), filename, err)
			continue
		}

		c.collector.CounterInc(metrics.AnalyzerRequestsTotal.Name,
			"provider", provider.Name(), "status", "success")
		issues = result
		break
	}

	if truncated {
		issues = append(issues, scan.Issue{
			Type:        scan.TypePartialAnalysis,
			Severity:    scan.SeverityLow,
			Line:        0,
			Description: fmt.Sprintf("File too large (%d characters); only the first %d were analyzed", originalSize, MaxContentSize),
		})
	}
	return issues
}
