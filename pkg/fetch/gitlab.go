package fetch

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/skillshield/sdk/pkg/core"
	serrors "github.com/skillshield/sdk/pkg/errors"
)

// GitLabConfig configures the GitLab fetcher.
type GitLabConfig struct {
	// Token is a GitLab personal access token. Empty means anonymous
	// access to public projects.
	Token string `json:"token" yaml:"token"`

	// BaseURL overrides the API endpoint, for self-hosted instances or
	// tests.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// RequestsPerSecond caps API calls. Zero means 5 rps.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	Logger core.Logger `json:"-" yaml:"-"`
}

// GitLabFetcher fetches skill files through the GitLab repository API.
type GitLabFetcher struct {
	client  *gitlab.Client
	limiter *rate.Limiter
	logger  core.Logger
}

var _ Fetcher = (*GitLabFetcher)(nil)

// NewGitLabFetcher creates a GitLab fetcher.
func NewGitLabFetcher(cfg GitLabConfig) (*GitLabFetcher, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, serrors.E(serrors.KindInvalidInput, "fetch.NewGitLabFetcher", "create client", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &GitLabFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)*2),
		logger:  core.LoggerOrNop(cfg.Logger),
	}, nil
}

// FetchFiles implements Fetcher.
func (f *GitLabFetcher) FetchFiles(ctx context.Context, skillURL string) ([]File, error) {
	const op = "fetch.GitLabFetcher.FetchFiles"

	ref, err := ParseRepoURL(skillURL)
	if err != nil {
		return nil, err
	}
	pid := ref.Owner + "/" + ref.Repo

	var files []File
	listOpts := &gitlab.ListTreeOptions{
		Recursive:   gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		tree, resp, err := f.client.Repositories.ListTree(pid, listOpts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, serrors.E(serrors.KindNetwork, op, "list tree for "+pid, err)
		}

		for _, node := range tree {
			if len(files) >= MaxFiles {
				return files, nil
			}
			if node.Type != "blob" || !Allowed(node.Path) {
				continue
			}
			content, err := f.fetchFile(ctx, pid, node.Path)
			if err != nil {
				f.logger.Warn("skipping %s: %v", node.Path, err)
				continue
			}
			files = append(files, File{Path: node.Path, Content: content})
		}

		if resp.NextPage == 0 || len(files) >= MaxFiles {
			break
		}
		listOpts.Page = resp.NextPage
	}

	f.logger.Debug("fetched %d files from %s", len(files), pid)
	return files, nil
}

func (f *GitLabFetcher) fetchFile(ctx context.Context, pid, filePath string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	raw, _, err := f.client.RepositoryFiles.GetRawFile(pid, filePath,
		&gitlab.GetRawFileOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if len(raw) > MaxFileSize {
		return "", serrors.New("file too large: " + filePath)
	}
	return string(raw), nil
}

// Close implements Fetcher.
func (f *GitLabFetcher) Close() error { return nil }
