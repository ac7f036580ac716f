package analyzers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	serrors "github.com/skillshield/sdk/pkg/errors"
	"github.com/skillshield/sdk/pkg/scan"
)

func TestDeepSeekAnalyze(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"content": "```json\n{\"issues\":[{\"type\":\"exfiltration\",\"severity\":\"CRITICAL\",\"line\":3,\"description\":\"sends memory out\"}]}\n```",
				}},
			},
		})
	}))
	defer server.Close()

	provider := NewDeepSeek(DeepSeekConfig{APIKey: "test-key", BaseURL: server.URL})
	if !provider.Available() {
		t.Fatal("provider with key should be available")
	}

	issues, err := provider.Analyze(context.Background(), "content", "skill.js")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "deepseek-chat" || gotReq.Temperature != 0.1 || gotReq.MaxTokens != 1000 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}

	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Type != "exfiltration" || issues[0].Severity != scan.SeverityCritical || issues[0].Line != 3 {
		t.Errorf("issue = %+v", issues[0])
	}
}

func TestDeepSeekAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewDeepSeek(DeepSeekConfig{APIKey: "k", BaseURL: server.URL})
	_, err := provider.Analyze(context.Background(), "content", "f.js")
	if err == nil {
		t.Fatal("expected error")
	}

	apiErr, ok := serrors.IsAPIError(err)
	if !ok {
		t.Fatalf("error is not APIError: %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Provider != "deepseek" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestDeepSeekUnavailableWithoutKey(t *testing.T) {
	provider := NewDeepSeek(DeepSeekConfig{})
	if provider.Available() {
		t.Error("provider without key should be unavailable")
	}
}

func TestClaudeAnalyze(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var gotReq claudeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": `{"issues":[{"type":"prompt_injection","severity":"HIGH","line":1,"description":"ignore previous instructions"}]}`},
			},
		})
	}))
	defer server.Close()

	provider := NewClaude(ClaudeConfig{APIKey: "anthropic-key", BaseURL: server.URL})
	issues, err := provider.Analyze(context.Background(), "content", "SKILL.md")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotPath != "/v1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "anthropic-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
	if gotReq.Model != defaultClaudeModel || gotReq.System == "" {
		t.Errorf("request = %+v", gotReq)
	}

	if len(issues) != 1 || issues[0].Type != "prompt_injection" {
		t.Errorf("issues = %v", issues)
	}
}

func TestClaudeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewClaude(ClaudeConfig{APIKey: "k", BaseURL: server.URL})
	_, err := provider.Analyze(context.Background(), "content", "f.js")
	if err == nil {
		t.Fatal("expected error")
	}
	if apiErr, ok := serrors.IsAPIError(err); !ok || apiErr.Provider != "claude" {
		t.Errorf("unexpected error: %v", err)
	}
}
