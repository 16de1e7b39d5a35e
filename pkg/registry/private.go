package registry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseRegistries reads one private registry prefix per line. Blank lines
// and lines starting with '#' are skipped.
func ParseRegistries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading private registries: %w", err)
	}
	return out, nil
}

// LoadRegistries reads a private registries file.
func LoadRegistries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening private registries file: %w", err)
	}
	defer f.Close()

	regs, err := ParseRegistries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return regs, nil
}
