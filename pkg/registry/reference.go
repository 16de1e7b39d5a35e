// Package registry resolves image references and fetches the tags published
// for them upstream.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

const (
	// DockerHubDomain is the canonical domain of Docker Hub references.
	DockerHubDomain = "docker.io"
	officialPrefix  = "library/"
)

// ErrNoTag is returned alongside a usable Reference when the image has
// neither tag nor digest, meaning it implicitly resolves to "latest".
var ErrNoTag = errors.New("no explicit tag specified")

// Reference is a parsed image reference.
type Reference struct {
	Raw    string // as written in the source
	Domain string // registry host, "docker.io" for Hub images
	Path   string // repository path, "library/node" for official images
	Tag    string
	Digest string
}

// ParseReference parses raw into a Reference. Any matching private registry
// prefix is stripped first so mirrored images resolve to their public name.
func ParseReference(raw string, privateRegistries []string) (Reference, error) {
	ref := Reference{Raw: raw}

	s := StripPrivateRegistry(strings.TrimSpace(raw), privateRegistries)
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return ref, fmt.Errorf("invalid image reference %q: %w", raw, err)
	}

	ref.Domain = reference.Domain(named)
	ref.Path = reference.Path(named)
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		ref.Digest = digested.Digest().String()
	}

	if ref.Tag == "" && ref.Digest == "" {
		return ref, ErrNoTag
	}
	return ref, nil
}

// StripPrivateRegistry removes the first private registry prefix that s
// starts with. Prefixes may include a path ("registry.acme.io/mirror").
func StripPrivateRegistry(s string, privateRegistries []string) string {
	for _, p := range privateRegistries {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		if strings.HasPrefix(s, p+"/") {
			return strings.TrimPrefix(s, p+"/")
		}
	}
	return s
}

// IsDockerHub reports whether the image lives on Docker Hub.
func (r Reference) IsDockerHub() bool {
	return r.Domain == DockerHubDomain
}

// Repository returns the repository path used for rule and level lookup.
func (r Reference) Repository() string {
	return r.Path
}

// Name returns the familiar repository name: "node" for official Hub images,
// "bitnami/redis" for other Hub images, "ghcr.io/org/app" elsewhere.
func (r Reference) Name() string {
	if r.IsDockerHub() {
		return strings.TrimPrefix(r.Path, officialPrefix)
	}
	return r.Domain + "/" + r.Path
}

// Key identifies the repository across references with different tags.
func (r Reference) Key() string {
	return r.Domain + "/" + r.Path
}

// String renders the familiar name with its tag.
func (r Reference) String() string {
	s := r.Name()
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	if r.Digest != "" {
		s += "@" + r.Digest
	}
	return s
}
