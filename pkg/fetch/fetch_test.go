package fetch

import (
	"errors"
	"testing"

	serrors "github.com/skillshield/sdk/pkg/errors"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    RepoRef
		wantErr bool
	}{
		{
			name: "github https",
			url:  "https://github.com/acme/cool-skill",
			want: RepoRef{Host: "github.com", Owner: "acme", Repo: "cool-skill"},
		},
		{
			name: "trailing git suffix",
			url:  "https://gitlab.com/group/project.git",
			want: RepoRef{Host: "gitlab.com", Owner: "group", Repo: "project"},
		},
		{
			name: "extra path segments",
			url:  "https://github.com/acme/cool-skill/tree/main/src",
			want: RepoRef{Host: "github.com", Owner: "acme", Repo: "cool-skill"},
		},
		{name: "missing repo", url: "https://github.com/acme", wantErr: true},
		{name: "not a url", url: "not a url at all", wantErr: true},
		{name: "no scheme", url: "github.com/acme/repo", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.url)
				}
				if !errors.Is(err, serrors.ErrInvalidRepoURL) && serrors.GetKind(err) != serrors.KindInvalidInput {
					t.Errorf("error not classified as invalid input: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepoURL(%q): %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"index.js", true},
		{"src/handler.ts", true},
		{"run.py", true},
		{"package.json", true},
		{"requirements.txt", true},
		{".env", true},
		{"config/prod.env", true},
		{"setup.sh", true},
		{"docker-compose.yml", true},
		{"Dockerfile", true},
		{"SKILL.md", true},
		{"deploy/values.yaml", true},
		{"logo.png", false},
		{"binary.exe", false},
		{"vendor.tar.gz", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Allowed(tt.path); got != tt.want {
				t.Errorf("Allowed(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
