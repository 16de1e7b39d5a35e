package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

const (
	// DefaultMaxWorkers bounds the repositories scanned in parallel.
	DefaultMaxWorkers = 5

	defaultPerPage = 100
	defaultHostRPS = 10
)

// ErrBranchNotFound is returned by Host.Tree for a branch the repository
// does not have.
var ErrBranchNotFound = errors.New("branch not found")

// fallbackBranches are tried after the repository's default branch.
var fallbackBranches = []string{"main", "master"}

// Repository is a hosted repository that may contain Dockerfiles.
type Repository struct {
	ID            string `json:"id"`   // API identifier: "owner/name" on GitHub, project ID on GitLab
	Name          string `json:"name"` // short name, unique per owner
	DefaultBranch string `json:"default_branch,omitempty"`
	WebURL        string `json:"web_url,omitempty"`
}

// Host lists the repositories of one owner and reads files from them.
// GitHub and GitLab implement it.
type Host interface {
	// Owner names the scanned organization, group or user.
	Owner() string
	Repositories(ctx context.Context) ([]Repository, error)
	// Tree lists the file paths on branch, or fails with ErrBranchNotFound.
	Tree(ctx context.Context, repo Repository, branch string) ([]string, error)
	ReadFile(ctx context.Context, repo Repository, branch, path string) ([]byte, error)
}

// RemoteDockerfile is a parsed Dockerfile from a hosted repository.
type RemoteDockerfile struct {
	Repository Repository  `json:"repository"`
	Path       string      `json:"path"`
	Branch     string      `json:"branch"`
	Images     []BaseImage `json:"images"`
}

// Location renders "repo/path@branch".
func (d RemoteDockerfile) Location() string {
	return d.Repository.Name + "/" + d.Path + "@" + d.Branch
}

// References returns the FROM images in order.
func (d RemoteDockerfile) References() []string {
	refs := make([]string, len(d.Images))
	for i, img := range d.Images {
		refs[i] = img.Image
	}
	return refs
}

// Lines maps each image to the line of its first FROM.
func (d RemoteDockerfile) Lines() map[string]int {
	lines := make(map[string]int, len(d.Images))
	for _, img := range d.Images {
		if _, ok := lines[img.Image]; !ok {
			lines[img.Image] = img.Line
		}
	}
	return lines
}

// IsDockerfile reports whether p names a Dockerfile: "Dockerfile",
// "api/Dockerfile.prod" or "build/app.dockerfile".
func IsDockerfile(p string) bool {
	base := path.Base(p)
	return base == "Dockerfile" ||
		strings.HasSuffix(strings.ToLower(base), ".dockerfile") ||
		strings.HasPrefix(base, "Dockerfile.")
}

// branches returns the default branch followed by the fallbacks, without
// duplicates.
func branches(repo Repository) []string {
	out := make([]string, 0, len(fallbackBranches)+1)
	if repo.DefaultBranch != "" {
		out = append(out, repo.DefaultBranch)
	}
	for _, b := range fallbackBranches {
		if b != repo.DefaultBranch {
			out = append(out, b)
		}
	}
	return out
}

// FindDockerfiles reads and parses the Dockerfiles of repo from the first
// branch that has any. Files that cannot be read or parsed are logged and
// skipped.
func FindDockerfiles(ctx context.Context, h Host, repo Repository) ([]RemoteDockerfile, error) {
	for _, branch := range branches(repo) {
		paths, err := h.Tree(ctx, repo, branch)
		if errors.Is(err, ErrBranchNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var found []RemoteDockerfile
		for _, p := range paths {
			if !IsDockerfile(p) {
				continue
			}
			data, err := h.ReadFile(ctx, repo, branch, p)
			if err != nil {
				logger.Warnf("Could not download %s/%s: %v", repo.Name, p, err)
				continue
			}
			images, err := ParseDockerfile(bytes.NewReader(data))
			if err != nil {
				logger.Warnf("Could not parse %s/%s: %v", repo.Name, p, err)
				continue
			}
			found = append(found, RemoteDockerfile{Repository: repo, Path: p, Branch: branch, Images: images})
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

// Scan finds the Dockerfiles of every repository of h, scanning at most
// workers repositories at a time. A repository that fails is logged and
// skipped; only listing the repositories or cancellation is an error.
// The result is sorted by repository name and path.
func Scan(ctx context.Context, h Host, workers int) ([]RemoteDockerfile, error) {
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}

	repos, err := h.Repositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories of %s: %w", h.Owner(), err)
	}
	logger.Infof("Found %d repositories for %s", len(repos), h.Owner())

	var (
		mu  sync.Mutex
		out []RemoteDockerfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			files, err := FindDockerfiles(gctx, h, repo)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warnf("Skipping %s: %v", repo.Name, err)
				return nil
			}
			logger.Debugf("Scan: %s: %d Dockerfile(s)", repo.Name, len(files))

			mu.Lock()
			out = append(out, files...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Repository.Name != out[j].Repository.Name {
			return out[i].Repository.Name < out[j].Repository.Name
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// apiClient is the HTTP plumbing shared by the GitHub and GitLab hosts.
type apiClient struct {
	http    *http.Client
	header  http.Header
	limiter *rate.Limiter
}

func newAPIClient(header http.Header) apiClient {
	return apiClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		header:  header,
		limiter: rate.NewLimiter(rate.Limit(defaultHostRPS), 1),
	}
}

// httpError is a non-2xx answer from a host API.
type httpError struct {
	Status int
	URL    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

func isNotFound(err error) bool {
	var he *httpError
	return errors.As(err, &he) && he.Status == http.StatusNotFound
}

// get performs an authenticated GET and returns the body and headers.
func (c apiClient) get(ctx context.Context, url, accept string) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &httpError{Status: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.Header, nil
}
