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
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
	defaultDeepSeekModel   = "deepseek-chat"
	defaultAnalyzerTimeout = 60 * time.Second
)

// DeepSeekConfig configures the DeepSeek provider.
type DeepSeekConfig struct {
	// APIKey authenticates against the DeepSeek API. Empty means the
	// provider reports itself unavailable.
	APIKey string `json:"api_key" yaml:"api_key"`

	// BaseURL overrides the API endpoint (primarily for tests).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model selects the chat model.
	Model string `json:"model" yaml:"model"`

	// Timeout bounds each analysis request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Logger core.Logger `json:"-" yaml:"-"`
}

// DeepSeek is the primary semantic analysis provider, speaking the
// OpenAI-compatible chat completions API.
type DeepSeek struct {
	cfg        DeepSeekConfig
	httpClient *http.Client
	logger     core.Logger
}

var _ Analyzer = (*DeepSeek)(nil)

// NewDeepSeek creates a DeepSeek provider.
func NewDeepSeek(cfg DeepSeekConfig) *DeepSeek {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultDeepSeekModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAnalyzerTimeout
	}
	return &DeepSeek{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     core.LoggerOrNop(cfg.Logger),
	}
}

// Name implements Analyzer.
func (d *DeepSeek) Name() string { return "deepseek" }

// Available implements Analyzer.
func (d *DeepSeek) Available() bool { return d.cfg.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze implements Analyzer.
func (d *DeepSeek) Analyze(ctx context.Context, content, filename string) ([]scan.Issue, error) {
	const op = "deepseek.Analyze"

	reqBody := chatRequest{
		Model: d.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(content, filename)},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, serrors.E(serrors.KindInternal, op, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, serrors.E(serrors.KindInternal, op, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.httpClient.Do(req)
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
			Provider:   d.Name(),
			Message:    truncateBody(body),
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, serrors.E(serrors.KindServer, op, "decode response", err)
	}
	if len(chat.Choices) == 0 {
		return nil, serrors.E(serrors.KindServer, op, "empty choices in response")
	}

	issues, err := parseIssues(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, serrors.E(serrors.KindServer, op, "unparseable model output", err)
	}
	d.logger.Debug("deepseek found %d issues in %s", len(issues), filename)
	return issues, nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
