// SkillShield Agent - security scanner for AI agent skill repositories.
//
// One-shot usage:
//
//	skillshield-agent -url https://github.com/acme/cool-skill
//	skillshield-agent -url https://gitlab.com/group/skill -json
//
// With semantic analysis:
//
//	DEEPSEEK_API_KEY=... skillshield-agent -url https://github.com/acme/cool-skill
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/skillshield/sdk/pkg/analyzers"
	"github.com/skillshield/sdk/pkg/core"
	"github.com/skillshield/sdk/pkg/engine"
	"github.com/skillshield/sdk/pkg/fetch"
	"github.com/skillshield/sdk/pkg/metrics"
	"github.com/skillshield/sdk/pkg/rules"
	"github.com/skillshield/sdk/pkg/scan"
	"github.com/skillshield/sdk/pkg/store"
)

const (
	appName    = "skillshield-agent"
	appVersion = "1.0.0"
)

func main() {
	skillURL := flag.String("url", "", "Skill repository URL to scan")
	githubToken := flag.String("github-token", "", "GitHub token (or SKILLSHIELD_GITHUB_TOKEN env)")
	gitlabToken := flag.String("gitlab-token", "", "GitLab token (or SKILLSHIELD_GITLAB_TOKEN env)")
	deepseekKey := flag.String("deepseek-key", "", "DeepSeek API key (or DEEPSEEK_API_KEY env)")
	claudeKey := flag.String("claude-key", "", "Anthropic API key (or ANTHROPIC_API_KEY env)")
	dataDir := flag.String("data-dir", defaultDataDir(), "Directory for rule and scan databases")
	cacheMaxAge := flag.Duration("cache-max-age", time.Hour, "Serve cached results younger than this (0 disables the cache)")
	noSemantic := flag.Bool("no-semantic", false, "Skip LLM semantic analysis")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	outputJSON := flag.Bool("json", false, "Output the result as JSON")
	outputFile := flag.String("output", "", "Output file path (instead of stdout)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	if *skillURL == "" && flag.NArg() > 0 {
		*skillURL = flag.Arg(0)
	}
	if *skillURL == "" {
		fmt.Fprintln(os.Stderr, "Error: no skill URL given.")
		fmt.Fprintln(os.Stderr, "Usage: skillshield-agent -url https://github.com/owner/repo")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	logger := core.LoggerFromVerbose(appName, *verbose)

	var collector metrics.Collector = &metrics.NopCollector{}
	if *metricsAddr != "" {
		prom := metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
			RegisterDefaultMetrics: true,
		})
		collector = prom
		go serveMetrics(*metricsAddr, prom, logger)
	}

	fetcher, err := buildFetcher(*skillURL, getEnvOrFlag(*githubToken, "SKILLSHIELD_GITHUB_TOKEN"),
		getEnvOrFlag(*gitlabToken, "SKILLSHIELD_GITLAB_TOKEN"), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ruleStore, err := rules.NewSQLiteStore(filepath.Join(*dataDir, "rules.db"), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening rule store: %v\n", err)
		os.Exit(1)
	}
	defer ruleStore.Close()

	scanStore, err := store.NewScanStore(filepath.Join(*dataDir, "scans.db"), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening scan store: %v\n", err)
		os.Exit(1)
	}
	defer scanStore.Close()

	// Serve from cache when a recent result exists.
	if *cacheMaxAge > 0 {
		if cached, err := scanStore.Latest(ctx, *skillURL, *cacheMaxAge); err == nil {
			collector.CounterInc(metrics.CacheHitsTotal.Name)
			logger.Info("serving cached result for %s", *skillURL)
			output(cached, *outputJSON, *outputFile)
			return
		}
		collector.CounterInc(metrics.CacheMissesTotal.Name)
	}

	var analyzer engine.SemanticAnalyzer
	if !*noSemantic {
		analyzer = analyzers.NewChain(logger, collector,
			analyzers.NewDeepSeek(analyzers.DeepSeekConfig{
				APIKey: getEnvOrFlag(*deepseekKey, "DEEPSEEK_API_KEY"),
				Logger: logger,
			}),
			analyzers.NewClaude(analyzers.ClaudeConfig{
				APIKey: getEnvOrFlag(*claudeKey, "ANTHROPIC_API_KEY"),
				Logger: logger,
			}),
		)
	}

	eng, err := engine.New(engine.Config{
		Fetcher:   fetcher,
		Rules:     ruleStore,
		Analyzer:  analyzer,
		Logger:    logger,
		Collector: collector,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	result, err := eng.Scan(ctx, *skillURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	if err := scanStore.Save(ctx, result); err != nil {
		logger.Warn("could not persist scan result: %v", err)
	}

	output(result, *outputJSON, *outputFile)
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".skillshield")
	}
	return ".skillshield"
}

func getEnvOrFlag(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}

// buildFetcher picks the hosting platform from the URL host.
func buildFetcher(skillURL, githubToken, gitlabToken string, logger core.Logger) (fetch.Fetcher, error) {
	ref, err := fetch.ParseRepoURL(skillURL)
	if err != nil {
		return nil, err
	}

	if strings.Contains(ref.Host, "gitlab") {
		return fetch.NewGitLabFetcher(fetch.GitLabConfig{Token: gitlabToken, Logger: logger})
	}
	return fetch.NewGitHubFetcher(fetch.GitHubConfig{Token: githubToken, Logger: logger})
}

func serveMetrics(addr string, collector metrics.Collector, logger core.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}

func output(result *scan.Result, asJSON bool, outputFile string) {
	if asJSON {
		data, _ := json.MarshalIndent(result, "", "  ")
		if outputFile != "" {
			if err := os.WriteFile(outputFile, data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Result written to %s\n", outputFile)
			return
		}
		fmt.Println(string(data))
		return
	}

	printSummary(result)
}

func printSummary(result *scan.Result) {
	fmt.Printf("Skill:          %s\n", result.SkillURL)
	fmt.Printf("Score:          %d/100\n", result.Score)
	fmt.Printf("Recommendation: %s\n", result.Recommendation)
	if result.Cached {
		fmt.Println("Source:         cache")
	} else {
		fmt.Printf("Scan time:      %dms\n", result.ScanTimeMs)
	}

	if len(result.Issues) == 0 {
		fmt.Println("\nNo issues found.")
		return
	}

	severityCounts := make(map[scan.Severity]int)
	for _, issue := range result.Issues {
		severityCounts[issue.Severity]++
	}

	fmt.Printf("\nFound %d issue(s):\n", len(result.Issues))
	for _, sev := range []scan.Severity{scan.SeverityCritical, scan.SeverityHigh, scan.SeverityMedium, scan.SeverityLow} {
		if count, ok := severityCounts[sev]; ok {
			fmt.Printf("  %-10s: %d\n", sev, count)
		}
	}

	fmt.Println()
	for _, issue := range result.Issues {
		line := ""
		if issue.Line > 0 {
			line = fmt.Sprintf(" (line %d)", issue.Line)
		}
		fmt.Printf("  [%s] %s%s: %s\n", issue.Severity, issue.Type, line, issue.Description)
		if issue.Snippet != "" {
			fmt.Printf("      %s\n", issue.Snippet)
		}
	}
}
