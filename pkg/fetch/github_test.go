package fetch

import (
	"net/http"
	"testing"
)

func TestNewGitHubFetcherLeavesDefaultClientUntouched(t *testing.T) {
	before := http.DefaultClient.Timeout

	f, err := NewGitHubFetcher(GitHubConfig{})
	if err != nil {
		t.Fatalf("NewGitHubFetcher: %v", err)
	}
	defer f.Close()

	if http.DefaultClient.Timeout != before {
		t.Errorf("http.DefaultClient.Timeout changed to %v", http.DefaultClient.Timeout)
	}
}

func TestNewGitHubFetcherInvalidBaseURL(t *testing.T) {
	if _, err := NewGitHubFetcher(GitHubConfig{BaseURL: "://bad"}); err == nil {
		t.Error("expected error for invalid base URL")
	}
}
