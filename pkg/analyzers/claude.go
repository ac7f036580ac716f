package analyzers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
	"github.com/skillshield/sdk/pkg/scan"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	defaultClaudeModel   = "claude-haiku-4-5"
	anthropicVersion     = "2023-06-01"
)

// ClaudeConfig configures the Claude fallback provider.
type ClaudeConfig struct {
	// APIKey authenticates against the Anthropic API. Empty means the
	// provider reports itself unavailable.
	APIKey string `json:"api_key" yaml:"api_key"`

	// BaseURL overrides the API endpoint (primarily for tests).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model selects the model.
	Model string `json:"model" yaml:"model"`

	// Timeout bounds each analysis request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Logger core.Logger `json:"-" yaml:"-"`
}

// Claude is the fallback semantic analysis provider.
type Claude struct {
	cfg        ClaudeConfig
	httpClient *http.Client
	logger     core.Logger
}

var _ Analyzer = (*Claude)(nil)

// NewClaude creates a Claude provider.
func NewClaude(cfg ClaudeConfig) *Claude {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultClaudeBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultClaudeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAnalyzerTimeout
	}
	return &Claude{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     core.LoggerOrNop(cfg.Logger),
	}
}

// Name implements Analyzer.
func (c *Claude) Name() string { return "claude" }

// Available implements Analyzer.
func (c *Claude) Available() bool { return c.cfg.APIKey != "" }

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze implements Analyzer.
func (c *Claude) Analyze(ctx context.Context, content, filename string) ([]scan.Issue, error) {
	const op = "claude.Analyze"

	reqBody := claudeRequest{
		Model:     c.cfg.Model,
		MaxTokens: 1000,
		System:    systemPrompt,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(content, filename)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, serrors.E(serrors.KindInternal, op, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, serrors.E(serrors.KindInternal, op, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, serrors.E(serrors.KindNetwork, op, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serrors.E(serrors.KindNetwork, op, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &serrors.APIError{
			StatusCode: resp.StatusCode,
			Provider:   c.Name(),
			Message:    truncateBody(body),
		}
	}

	var msg claudeResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, serrors.E(serrors.KindServer, op, "decode response", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, serrors.E(serrors.KindServer, op, "no text block in response")
	}

	issues, err := parseIssues(text)
	if err != nil {
		return nil, serrors.E(serrors.KindServer, op, "unparseable model output", err)
	}
	c.logger.Debug("claude found %d issues in %s", len(issues), filename)
	return issues, nil
}
