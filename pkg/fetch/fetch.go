// Package fetch retrieves skill files from hosted git repositories.
// Fetchers return a bounded, ordered set of scannable files; the scan
// engine never talks to a hosting platform directly.
package fetch

import (
	"context"
	"net/url"
	"path"
	"strings"

	serrors "github.com/skillshield/sdk/pkg/errors"
)

// File is one fetched skill file.
type File struct {
	// Path is the repository-relative path.
	Path string `json:"path"`

	// Content is the decoded file content.
	Content string `json:"content"`
}

// Fetcher retrieves the scannable files of a skill repository.
type Fetcher interface {
	// FetchFiles returns the allowed files of the repository at skillURL
	// in a stable order. An error means the repository as a whole could
	// not be read; per-file failures are skipped.
	FetchFiles(ctx context.Context, skillURL string) ([]File, error)

	// Close releases any held resources.
	Close() error
}

// Fetch limits. Repositories are untrusted input; both the file count
// and per-file size are bounded.
const (
	MaxFiles    = 50
	MaxFileSize = 500 * 1024
)

var allowedExtensions = map[string]bool{
	".js":   true,
	".ts":   true,
	".py":   true,
	".json": true,
	".sh":   true,
	".env":  true,
	".yaml": true,
	".yml":  true,
	".md":   true,
}

var allowedNames = map[string]bool{
	"package.json":       true,
	"requirements.txt":   true,
	"dockerfile":         true,
	"docker-compose.yml": true,
	".env":               true,
}

// Allowed reports whether a repository path is worth scanning.
func Allowed(filePath string) bool {
	name := strings.ToLower(path.Base(filePath))
	if allowedNames[name] {
		return true
	}
	return allowedExtensions[path.Ext(name)]
}

// RepoRef identifies a repository on a hosting platform.
type RepoRef struct {
	Host  string
	Owner string
	Repo  string
}

// ParseRepoURL extracts the owner and repository from a skill URL like
// https://github.com/owner/repo or https://gitlab.com/group/project.git.
func ParseRepoURL(skillURL string) (RepoRef, error) {
	u, err := url.Parse(skillURL)
	if err != nil {
		return RepoRef{}, serrors.E(serrors.KindInvalidInput, "fetch.ParseRepoURL", skillURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return RepoRef{}, serrors.ErrInvalidRepoURL
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, serrors.ErrInvalidRepoURL
	}

	return RepoRef{
		Host:  strings.ToLower(u.Host),
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}
