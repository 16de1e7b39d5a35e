package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/crane"
)

// OCIClient lists tags from any registry speaking the OCI distribution API.
// Requests are anonymous.
type OCIClient struct {
	Options []crane.Option
}

// Tags lists the tags of ref's repository.
func (c *OCIClient) Tags(ctx context.Context, ref Reference) ([]string, error) {
	repo := ref.Domain + "/" + ref.Path

	opts := append([]crane.Option{crane.WithContext(ctx)}, c.Options...)
	tags, err := crane.ListTags(repo, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for %s: %w", repo, err)
	}
	return tags, nil
}

// Router sends Docker Hub references to Hub and everything else to OCI.
type Router struct {
	Hub TagFetcher
	OCI TagFetcher
}

// NewRouter wires the default Hub and OCI clients.
func NewRouter(hub *HubClient) *Router {
	return &Router{Hub: hub, OCI: &OCIClient{}}
}

// Tags dispatches on the reference domain.
func (r *Router) Tags(ctx context.Context, ref Reference) ([]string, error) {
	f := r.OCI
	if ref.IsDockerHub() {
		f = r.Hub
	}
	if f == nil {
		return nil, fmt.Errorf("registry %s not supported", ref.Domain)
	}
	return f.Tags(ctx, ref)
}
