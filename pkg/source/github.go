package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

// DefaultGitHubURL is the GitHub REST API endpoint.
const DefaultGitHubURL = "https://api.github.com"

// GitHub reads the repositories of a GitHub organization or user.
type GitHub struct {
	BaseURL string // Allow overriding the API URL for testing or GitHub Enterprise
	Org     bool   // owner is an organization rather than a user
	PerPage int

	owner string
	api   apiClient
}

// NewGitHub creates a GitHub host for owner. An empty token only sees
// public repositories.
func NewGitHub(owner, token string, org bool) *GitHub {
	header := http.Header{}
	header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &GitHub{
		BaseURL: DefaultGitHubURL,
		Org:     org,
		PerPage: defaultPerPage,
		owner:   owner,
		api:     newAPIClient(header),
	}
}

// Owner returns the organization or user name.
func (g *GitHub) Owner() string {
	return g.owner
}

func (g *GitHub) baseURL() string {
	if g.BaseURL == "" {
		return DefaultGitHubURL
	}
	return strings.TrimRight(g.BaseURL, "/")
}

type githubRepo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Archived      bool   `json:"archived"`
}

// Repositories pages through /orgs/{org}/repos or /users/{user}/repos.
// Archived repositories are skipped.
func (g *GitHub) Repositories(ctx context.Context) ([]Repository, error) {
	kind := "users"
	if g.Org {
		kind = "orgs"
	}
	perPage := g.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	var repos []Repository
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/%s/%s/repos?per_page=%d&page=%d", g.baseURL(), kind, url.PathEscape(g.owner), perPage, page)
		body, _, err := g.api.get(ctx, u, "application/vnd.github+json")
		if err != nil {
			return nil, err
		}

		var batch []githubRepo
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		for _, r := range batch {
			if r.Archived {
				continue
			}
			repos = append(repos, Repository{
				ID:            r.FullName,
				Name:          r.Name,
				DefaultBranch: r.DefaultBranch,
				WebURL:        r.HTMLURL,
			})
		}
		if len(batch) < perPage {
			break
		}
	}
	return repos, nil
}

type githubTree struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// Tree lists the blobs of branch with the recursive git trees API.
func (g *GitHub) Tree(ctx context.Context, repo Repository, branch string) ([]string, error) {
	u := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", g.baseURL(), g.repoPath(repo), escapePath(branch))
	body, _, err := g.api.get(ctx, u, "application/vnd.github+json")
	if isNotFound(err) {
		return nil, fmt.Errorf("%s@%s: %w", repo.Name, branch, ErrBranchNotFound)
	}
	if err != nil {
		return nil, err
	}

	var tree githubTree
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if tree.Truncated {
		logger.Warnf("Tree of %s is truncated, some Dockerfiles may be missed", repo.Name)
	}

	var paths []string
	for _, e := range tree.Tree {
		if e.Type == "blob" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// ReadFile downloads a file through the contents API in raw form.
func (g *GitHub) ReadFile(ctx context.Context, repo Repository, branch, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", g.baseURL(), g.repoPath(repo), escapePath(path), url.QueryEscape(branch))
	body, _, err := g.api.get(ctx, u, "application/vnd.github.raw+json")
	return body, err
}

func (g *GitHub) repoPath(repo Repository) string {
	if repo.ID != "" {
		return repo.ID
	}
	return url.PathEscape(g.owner) + "/" + url.PathEscape(repo.Name)
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
