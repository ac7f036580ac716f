package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
)

// Directory recursion depth for repository listings. Skill repos are
// shallow; anything deeper is ignored.
const maxTreeDepth = 3

// GitHubConfig configures the GitHub fetcher.
type GitHubConfig struct {
	// Token is a GitHub access token. Empty means unauthenticated
	// access with its lower rate limits.
	Token string `json:"token" yaml:"token"`

	// BaseURL overrides the API endpoint, for GitHub Enterprise or
	// tests. Must end with a slash when set.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// RequestsPerSecond caps API calls. Zero means 5 rps.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	Logger core.Logger `json:"-" yaml:"-"`
}

// GitHubFetcher fetches skill files through the GitHub contents API.
type GitHubFetcher struct {
	client  *github.Client
	limiter *rate.Limiter
	logger  core.Logger
}

var _ Fetcher = (*GitHubFetcher)(nil)

// NewGitHubFetcher creates a GitHub fetcher.
func NewGitHubFetcher(cfg GitHubConfig) (*GitHubFetcher, error) {
	// oauth2.NewClient with a nil source hands back http.DefaultClient,
	// which must not be mutated; the anonymous path gets its own client.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = 30 * time.Second
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, serrors.E(serrors.KindInvalidInput, "fetch.NewGitHubFetcher", "invalid base URL", err)
		}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &GitHubFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)*2),
		logger:  core.LoggerOrNop(cfg.Logger),
	}, nil
}

// FetchFiles implements Fetcher.
func (f *GitHubFetcher) FetchFiles(ctx context.Context, skillURL string) ([]File, error) {
	const op = "fetch.GitHubFetcher.FetchFiles"

	ref, err := ParseRepoURL(skillURL)
	if err != nil {
		return nil, err
	}

	var files []File
	if err := f.fetchDir(ctx, ref, "", 0, &files); err != nil {
		return nil, serrors.E(serrors.KindNetwork, op, "list repository "+ref.Owner+"/"+ref.Repo, err)
	}

	f.logger.Debug("fetched %d files from %s/%s", len(files), ref.Owner, ref.Repo)
	return files, nil
}

func (f *GitHubFetcher) fetchDir(ctx context.Context, ref RepoRef, dir string, depth int, files *[]File) error {
	if depth > maxTreeDepth || len(*files) >= MaxFiles {
		return nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	_, entries, _, err := f.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, dir, nil)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if len(*files) >= MaxFiles {
			return nil
		}

		switch entry.GetType() {
		case "dir":
			if err := f.fetchDir(ctx, ref, entry.GetPath(), depth+1, files); err != nil {
				return err
			}

		case "file":
			if !Allowed(entry.GetPath()) || entry.GetSize() > MaxFileSize {
				continue
			}
			content, err := f.fetchFile(ctx, ref, entry.GetPath())
			if err != nil {
				f.logger.Warn("skipping %s: %v", entry.GetPath(), err)
				continue
			}
			*files = append(*files, File{Path: entry.GetPath(), Content: content})
		}
	}
	return nil
}

func (f *GitHubFetcher) fetchFile(ctx context.Context, ref RepoRef, filePath string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, filePath, nil)
	if err != nil {
		return "", err
	}
	if fileContent == nil {
		return "", serrors.New("not a file: " + filePath)
	}
	return fileContent.GetContent()
}

// Close implements Fetcher.
func (f *GitHubFetcher) Close() error { return nil }
