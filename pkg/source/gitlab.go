package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultGitLabURL is the GitLab instance used when none is configured.
const DefaultGitLabURL = "https://gitlab.com"

// GitLab reads the projects of a GitLab group or user through the v4 API.
type GitLab struct {
	BaseURL string // instance URL without /api/v4
	Group   bool   // owner is a group (subgroups included) rather than a user
	PerPage int

	owner string
	api   apiClient
}

// NewGitLab creates a GitLab host for owner.
func NewGitLab(owner, token string, group bool) *GitLab {
	header := http.Header{}
	if token != "" {
		header.Set("PRIVATE-TOKEN", token)
	}
	return &GitLab{
		BaseURL: DefaultGitLabURL,
		Group:   group,
		PerPage: defaultPerPage,
		owner:   owner,
		api:     newAPIClient(header),
	}
}

// Owner returns the group or user name.
func (g *GitLab) Owner() string {
	return g.owner
}

func (g *GitLab) apiURL() string {
	base := g.BaseURL
	if base == "" {
		base = DefaultGitLabURL
	}
	return strings.TrimRight(base, "/") + "/api/v4"
}

func (g *GitLab) perPage() int {
	if g.PerPage <= 0 {
		return defaultPerPage
	}
	return g.PerPage
}

type gitlabProject struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	DefaultBranch string `json:"default_branch"`
	WebURL        string `json:"web_url"`
	Archived      bool   `json:"archived"`
}

// Repositories pages through the group's or user's projects. Archived
// projects are skipped.
func (g *GitLab) Repositories(ctx context.Context) ([]Repository, error) {
	endpoint := fmt.Sprintf("%s/users/%s/projects?", g.apiURL(), url.PathEscape(g.owner))
	if g.Group {
		endpoint = fmt.Sprintf("%s/groups/%s/projects?include_subgroups=true&", g.apiURL(), url.PathEscape(g.owner))
	}

	var repos []Repository
	err := g.paginate(ctx, endpoint, func(body []byte) (int, error) {
		var batch []gitlabProject
		if err := json.Unmarshal(body, &batch); err != nil {
			return 0, err
		}
		for _, p := range batch {
			if p.Archived {
				continue
			}
			name := p.Path
			if name == "" {
				name = p.Name
			}
			repos = append(repos, Repository{
				ID:            strconv.Itoa(p.ID),
				Name:          name,
				DefaultBranch: p.DefaultBranch,
				WebURL:        p.WebURL,
			})
		}
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// Tree lists the blobs of branch, recursively.
func (g *GitLab) Tree(ctx context.Context, repo Repository, branch string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/repository/tree?recursive=true&ref=%s&",
		g.apiURL(), url.PathEscape(repo.ID), url.QueryEscape(branch))

	var paths []string
	err := g.paginate(ctx, endpoint, func(body []byte) (int, error) {
		var batch []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &batch); err != nil {
			return 0, err
		}
		for _, e := range batch {
			if e.Type == "blob" {
				paths = append(paths, e.Path)
			}
		}
		return len(batch), nil
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%s@%s: %w", repo.Name, branch, ErrBranchNotFound)
	}
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ReadFile downloads a raw file from the repository files API.
func (g *GitLab) ReadFile(ctx context.Context, repo Repository, branch, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/projects/%s/repository/files/%s/raw?ref=%s",
		g.apiURL(), url.PathEscape(repo.ID), url.PathEscape(path), url.QueryEscape(branch))
	body, _, err := g.api.get(ctx, u, "")
	return body, err
}

// paginate calls decode for each page of endpoint (which ends in '?' or
// '&') until the X-Next-Page header runs out or a page comes back short.
func (g *GitLab) paginate(ctx context.Context, endpoint string, decode func([]byte) (int, error)) error {
	perPage := g.perPage()
	page := "1"
	for page != "" {
		u := fmt.Sprintf("%sper_page=%d&page=%s", endpoint, perPage, page)
		body, header, err := g.api.get(ctx, u, "application/json")
		if err != nil {
			return err
		}
		n, err := decode(body)
		if err != nil {
			return fmt.Errorf("invalid response: %w", err)
		}

		page = header.Get("X-Next-Page")
		if n < perPage {
			break
		}
	}
	return nil
}
