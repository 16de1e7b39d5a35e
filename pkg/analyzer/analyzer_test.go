package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Patrick2402/image-version-analyzer/pkg/ignore"
	"github.com/Patrick2402/image-version-analyzer/pkg/registry"
	"github.com/Patrick2402/image-version-analyzer/pkg/rules"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// fakeFetcher serves canned tags keyed by familiar repository name.
type fakeFetcher struct {
	mu    sync.Mutex
	tags  map[string][]string
	calls map[string]int
}

func (f *fakeFetcher) Tags(_ context.Context, ref registry.Reference) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ref.Name()]++

	tags, ok := f.tags[ref.Name()]
	if !ok {
		return nil, errors.New("repository not found")
	}
	return tags, nil
}

func newFake() *fakeFetcher {
	return &fakeFetcher{tags: map[string][]string{
		"node":          nodeTags,
		"golang":        {"1.20-alpine", "1.21.5-alpine", "1.22", "1.24.2-alpine", "1.24.2", "1.25rc1-alpine", "latest"},
		"python":        {"3.9", "3.10", "3.11", "3.12"},
		"alpine":        {"3.18", "3.19", "3.20"},
		"bitnami/redis": {"7.2.4", "7.4.1", "8.0.0"},
		"empty":         {"latest", "stable"},
	}}
}

func findResult(t *testing.T, r *Report, image string) AnalysisResult {
	t.Helper()
	for _, res := range r.Results {
		if res.Image == image {
			return res
		}
	}
	require.Failf(t, "result not found", "no result for %s", image)
	return AnalysisResult{}
}

func TestAnalyzer_Analyze_NodeLTS(t *testing.T) {
	set, err := rules.Parse([]byte(nodeRuleJSON))
	require.NoError(t, err)

	a := New(newFake())
	a.Rules = set

	report, err := a.Analyze(context.Background(), []string{"node:18"})
	require.NoError(t, err)

	res := findResult(t, report, "node:18")
	require.NotNil(t, res.Recommended)
	require.NotNil(t, res.Gap)
	assert.Equal(t, "18", *res.Current)
	assert.Equal(t, "22", *res.Recommended)
	assert.Equal(t, 1, *res.Gap)
	assert.Equal(t, []string{"20"}, res.Missing)
	assert.Equal(t, "major", res.Level)
	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, "Image is 1 LTS step(s) behind but within threshold (3)", res.Message)
}

func TestAnalyzer_Analyze_Golang(t *testing.T) {
	a := New(newFake())

	report, err := a.Analyze(context.Background(), []string{"golang:1.20-alpine"})
	require.NoError(t, err)

	res := findResult(t, report, "golang:1.20-alpine")
	assert.Equal(t, StatusOutdated, res.Status)
	assert.Equal(t, "1.24.2-alpine", *res.Recommended)
	assert.Equal(t, 4, *res.Gap)
	assert.Equal(t, "minor", res.Level)
	assert.Equal(t, []string{"1.21", "1.22", "1.23"}, res.Missing)
	assert.Equal(t, "Image is 4 minor version(s) behind", res.Message)
	assert.Equal(t, 1, report.ExitCode())
}

func TestAnalyzer_Analyze_Unknown(t *testing.T) {
	set, err := rules.Parse([]byte(nodeRuleJSON))
	require.NoError(t, err)

	f := newFake()
	a := New(f)
	a.Rules = set

	digest := "sha256:" + strings.Repeat("c", 64)
	report, err := a.Analyze(context.Background(), []string{"node:latest", "node", "alpine@" + digest, "Bad:Ref"})
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	for _, res := range report.Results {
		assert.Equal(t, StatusUnknown, res.Status, res.Image)
		assert.Nil(t, res.Gap, res.Image)
		assert.Nil(t, res.Recommended, res.Image)
	}

	latest := findResult(t, report, "node:latest")
	require.NotNil(t, latest.Current)
	assert.Equal(t, "latest", *latest.Current)
	assert.Contains(t, latest.Message, "could not be interpreted")

	assert.Contains(t, findResult(t, report, "node").Message, "No explicit tag")
	assert.Contains(t, findResult(t, report, "alpine@"+digest).Message, "digest")
	assert.Contains(t, findResult(t, report, "Bad:Ref").Message, "Invalid image reference")

	assert.Empty(t, f.calls, "no tags are fetched for images that cannot be compared")
	assert.Equal(t, 4, report.Summary.Unknown)
}

func TestAnalyzer_Analyze_NoCandidates(t *testing.T) {
	a := New(newFake())

	report, err := a.Analyze(context.Background(), []string{"acme/missing:1.0", "empty:2.1"})
	require.NoError(t, err)

	for _, res := range report.Results {
		assert.Equal(t, StatusWarning, res.Status, res.Image)
		assert.Equal(t, "No tags found or repository not accessible", res.Message)
		assert.Nil(t, res.Gap)
		require.NotNil(t, res.Current)
	}
}

func TestAnalyzer_Analyze_UpToDateAndWithinThreshold(t *testing.T) {
	a := New(newFake())

	report, err := a.Analyze(context.Background(), []string{"alpine:3.20", "python:3.10"})
	require.NoError(t, err)

	alpine := findResult(t, report, "alpine:3.20")
	assert.Equal(t, StatusUpToDate, alpine.Status)
	assert.Equal(t, 0, *alpine.Gap)
	assert.Equal(t, "Image is up-to-date", alpine.Message)

	python := findResult(t, report, "python:3.10")
	assert.Equal(t, StatusWarning, python.Status)
	assert.Equal(t, 2, *python.Gap)
	assert.Equal(t, "Image is 2 minor version(s) behind but within threshold (3)", python.Message)

	assert.Equal(t, 0, report.ExitCode())
}

func TestAnalyzer_Analyze_Ignore(t *testing.T) {
	f := newFake()
	m, err := ignore.New("python:3.9*", "regex:^debian:(?!11).*$")
	require.NoError(t, err)

	a := New(f)
	a.Ignore = m

	report, err := a.Analyze(context.Background(), []string{"python:3.9-slim", "debian:12", "debian:11", "alpine:3.19"})
	require.NoError(t, err)

	assert.Equal(t, []string{"python:3.9-slim", "debian:12"}, report.Ignored)
	assert.Equal(t, 2, report.Summary.Ignored)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "debian:11", report.Results[0].Image)
	assert.Equal(t, 0, f.calls["python"])
}

func TestAnalyzer_Analyze_Overrides(t *testing.T) {
	set, err := rules.Parse([]byte(`{
		"python": {"level": 1},
		"alpine": {"step_by": 2},
		"redis": {"constraint": "<8.0"}
	}`))
	require.NoError(t, err)

	a := New(newFake())
	a.Rules = set

	report, err := a.Analyze(context.Background(), []string{"python:3.9", "alpine:3.18", "bitnami/redis:7.2.4"})
	require.NoError(t, err)

	python := findResult(t, report, "python:3.9")
	assert.Equal(t, "major", python.Level)
	assert.Equal(t, StatusUpToDate, python.Status, "rule level ignores minor releases")

	alpine := findResult(t, report, "alpine:3.18")
	assert.Equal(t, StatusWarning, alpine.Status)
	assert.Contains(t, alpine.Message, "step_by ignored without lts_versions")
	assert.Equal(t, "3.20", *alpine.Recommended)

	redis := findResult(t, report, "bitnami/redis:7.2.4")
	assert.Equal(t, "7.4.1", *redis.Recommended)

	// --level beats the rule
	a.Level = version.LevelMinor
	report, err = a.Analyze(context.Background(), []string{"python:3.9"})
	require.NoError(t, err)
	assert.Equal(t, 3, *report.Results[0].Gap)
}

func TestAnalyzer_Analyze_LTSViolation(t *testing.T) {
	set, err := rules.Parse([]byte(`{"node": {"level": 1, "lts_versions": [16, 18, 20, 22, 24]}}`))
	require.NoError(t, err)

	f := newFake()
	f.tags["node"] = []string{"16", "17", "18"}
	a := New(f)
	a.Rules = set

	report, err := a.Analyze(context.Background(), []string{"node:17"})
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, "18", *res.Recommended)
	assert.Contains(t, res.Message, "violates LTS policy")
}

func TestAnalyzer_Analyze_LTSOnlyJudgedAtMajorLevel(t *testing.T) {
	set, err := rules.Parse([]byte(`{"node": {"lts_versions": [16, 18, 20, 22, 24]}}`))
	require.NoError(t, err)

	f := newFake()
	f.tags["node"] = []string{"16", "17", "18"}
	a := New(f)
	a.Rules = set
	a.Level = version.LevelMinor

	report, err := a.Analyze(context.Background(), []string{"node:17"})
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, "minor", res.Level)
	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, "Image is 1 minor version(s) behind but within threshold (3)", res.Message)
	assert.NotContains(t, res.Message, "LTS")
}

func TestAnalyzer_Analyze_DigitsInVariant(t *testing.T) {
	f := newFake()
	f.tags["python"] = []string{"3.12.1-alpine3.19", "3.13.2-alpine3.19", "3.13.2-alpine3.21", "3.13.2", "3.14.0-rc1-alpine3.21"}
	f.tags["postgres"] = []string{"16.4-bookworm-20240101", "17.0-bookworm-20240101", "17.0-bookworm-20241001", "17.0", "20240101-bookworm"}
	f.tags["dotnet/runtime"] = []string{"8.0-windowsservercore-ltsc2022", "9.0-windowsservercore-ltsc2022", "9.0"}

	a := New(f)
	a.Level = version.LevelMinor

	report, err := a.Analyze(context.Background(), []string{
		"python:3.12.1-alpine3.19",
		"postgres:16.4-bookworm-20240101",
		"dotnet/runtime:8.0-windowsservercore-ltsc2022",
	})
	require.NoError(t, err)

	python := findResult(t, report, "python:3.12.1-alpine3.19")
	require.NotNil(t, python.Recommended)
	assert.Equal(t, "3.13.2-alpine3.19", *python.Recommended)
	assert.Equal(t, 1, *python.Gap)
	assert.Equal(t, StatusWarning, python.Status)
	assert.NotEqual(t, "No tags found or repository not accessible", python.Message)

	postgres := findResult(t, report, "postgres:16.4-bookworm-20240101")
	require.NotNil(t, postgres.Recommended)
	assert.Equal(t, "17.0-bookworm-20240101", *postgres.Recommended, "the dated snapshot is part of the variant")

	dotnet := findResult(t, report, "dotnet/runtime:8.0-windowsservercore-ltsc2022")
	require.NotNil(t, dotnet.Recommended)
	assert.Equal(t, "9.0-windowsservercore-ltsc2022", *dotnet.Recommended)
	assert.Equal(t, 1, *dotnet.Gap)
}

func TestAnalyzer_Analyze_PrivateRegistry(t *testing.T) {
	f := newFake()
	a := New(f)
	a.PrivateRegistries = []string{"registry.acme.io/mirror"}

	report, err := a.Analyze(context.Background(), []string{"registry.acme.io/mirror/alpine:3.20", "alpine:3.19"})
	require.NoError(t, err)

	res := findResult(t, report, "registry.acme.io/mirror/alpine:3.20")
	assert.Equal(t, StatusUpToDate, res.Status)
	assert.Equal(t, 1, f.calls["alpine"], "mirrored and public references share one fetch")
}

func TestAnalyzer_Analyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newFake()).Analyze(ctx, []string{"alpine:3.19"})
	assert.ErrorIs(t, err, context.Canceled)
}
