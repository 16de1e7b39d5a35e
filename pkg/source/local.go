package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/docker/docker/api/types/filters"
	dockerimage "github.com/docker/docker/api/types/image"
	sdk "github.com/docker/docker/client"
)

// ImageLister is the part of the Docker API client used here.
type ImageLister interface {
	ImageList(ctx context.Context, options dockerimage.ListOptions) ([]dockerimage.Summary, error)
}

// LocalImages lists the tagged images in the local Docker daemon, using the
// standard DOCKER_HOST environment.
func LocalImages(ctx context.Context) ([]string, error) {
	cli, err := sdk.NewClientWithOpts(
		sdk.FromEnv,
		sdk.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer cli.Close()

	return ListTagged(ctx, cli)
}

// ListTagged returns the sorted, de-duplicated repo tags known to l.
// Untagged "<none>" entries are skipped.
func ListTagged(ctx context.Context, l ImageLister) ([]string, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("dangling", "false")

	images, err := l.ImageList(ctx, dockerimage.ListOptions{Filters: filterArgs})
	if err != nil {
		return nil, fmt.Errorf("failed to get image list: %w", err)
	}

	seen := map[string]bool{}
	var refs []string
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == "" || tag == "<none>:<none>" || seen[tag] {
				continue
			}
			seen[tag] = true
			refs = append(refs, tag)
		}
	}
	sort.Strings(refs)
	return refs, nil
}
