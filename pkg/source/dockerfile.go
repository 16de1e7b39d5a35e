// Package source extracts the image references to analyze.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

// BaseImage is one FROM instruction.
type BaseImage struct {
	Image string `json:"image"`
	Stage string `json:"stage,omitempty"` // "AS" name, if any
	Line  int    `json:"line"`
}

// Dockerfile reads the base images of the Dockerfile at path.
func Dockerfile(path string) ([]BaseImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Dockerfile: %w", err)
	}
	defer f.Close()

	images, err := ParseDockerfile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return images, nil
}

// ParseDockerfile returns every FROM image in order. Platform flags are
// dropped, global ARG defaults are substituted, and references to earlier
// build stages or "scratch" are skipped.
func ParseDockerfile(r io.Reader) ([]BaseImage, error) {
	res, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Dockerfile: %w", err)
	}

	args := map[string]string{}
	stages := map[string]bool{}
	seenFrom := false

	var images []BaseImage
	for _, node := range res.AST.Children {
		switch strings.ToLower(node.Value) {
		case "arg":
			if !seenFrom {
				collectArgs(node, args)
			}
		case "from":
			seenFrom = true
			img, ok := fromInstruction(node, args)
			if !ok {
				continue
			}
			skip := strings.EqualFold(img.Image, "scratch") || stages[strings.ToLower(img.Image)]
			if img.Stage != "" {
				stages[strings.ToLower(img.Stage)] = true
			}
			if skip {
				logger.Debugf("Dockerfile: Skipping %s at line %d", img.Image, img.Line)
				continue
			}
			images = append(images, img)
		}
	}

	return images, nil
}

func fromInstruction(node *parser.Node, args map[string]string) (BaseImage, bool) {
	if node.Next == nil {
		return BaseImage{}, false
	}

	img := BaseImage{
		Image: expandArgs(node.Next.Value, args),
		Line:  node.StartLine,
	}
	if as := node.Next.Next; as != nil && strings.EqualFold(as.Value, "as") && as.Next != nil {
		img.Stage = as.Next.Value
	}
	return img, img.Image != ""
}

// collectArgs records "ARG NAME=default" values.
func collectArgs(node *parser.Node, args map[string]string) {
	for n := node.Next; n != nil; n = n.Next {
		name, value, ok := strings.Cut(n.Value, "=")
		if !ok {
			continue
		}
		args[name] = strings.Trim(value, `"'`)
	}
}

func expandArgs(s string, args map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(name string) string {
		return args[name]
	})
}
