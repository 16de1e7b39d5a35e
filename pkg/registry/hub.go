package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

const (
	// DefaultHubURL is the Docker Hub API endpoint.
	DefaultHubURL = "https://hub.docker.com"

	defaultHubPageSize = 100
	defaultHubMaxPages = 10
	defaultHubRPS      = 5
)

// TagFetcher lists the tags published for a repository.
type TagFetcher interface {
	Tags(ctx context.Context, ref Reference) ([]string, error)
}

// HubClient fetches tags from the Docker Hub v2 API.
type HubClient struct {
	BaseURL    string // Allow overriding the API URL for testing
	MaxPages   int
	PageSize   int
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// NewHubClient creates a HubClient limited to rps requests per second.
// A non-positive rps uses the default.
func NewHubClient(rps float64) *HubClient {
	if rps <= 0 {
		rps = defaultHubRPS
	}
	return &HubClient{
		MaxPages:   defaultHubMaxPages,
		PageSize:   defaultHubPageSize,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// hubTagPage is one page of /v2/repositories/{ns}/{name}/tags.
type hubTagPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// Tags follows the paginated tag listing up to MaxPages pages.
func (c *HubClient) Tags(ctx context.Context, ref Reference) ([]string, error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultHubURL
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultHubPageSize
	}
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = defaultHubMaxPages
	}

	next := fmt.Sprintf("%s/v2/repositories/%s/tags?page_size=%d&ordering=last_updated",
		baseURL, ref.Path, pageSize)

	var tags []string
	for page := 0; page < maxPages && next != ""; page++ {
		logger.Debugf("Hub: Fetching tags page %d for %s", page+1, ref.Path)

		p, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tags for %s: %w", ref.Name(), err)
		}
		for _, r := range p.Results {
			tags = append(tags, r.Name)
		}

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}

	return tags, nil
}

func (c *HubClient) fetchPage(ctx context.Context, pageURL string) (*hubTagPage, error) {
	if _, err := url.Parse(pageURL); err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var page hubTagPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	return &page, nil
}
