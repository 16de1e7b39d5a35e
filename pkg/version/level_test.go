package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pool(tags ...string) []Version {
	p := make([]Version, 0, len(tags))
	for _, t := range tags {
		p = append(p, MustParse(t))
	}
	return p
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"1": LevelMajor, "major": LevelMajor, "MAJ": LevelMajor,
		"2": LevelMinor, "minor": LevelMinor, " xy ": LevelMinor,
		"3": LevelPatch, "Patch": LevelPatch,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("4")
	assert.Error(t, err)
	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "major", LevelMajor.String())
	assert.Equal(t, "minor", LevelMinor.String())
	assert.Equal(t, "patch", LevelPatch.String())
	assert.False(t, Level(0).Valid())
}

func TestRepositoryBase(t *testing.T) {
	assert.Equal(t, "node", RepositoryBase("docker.io/library/Node"))
	assert.Equal(t, "redis", RepositoryBase("bitnami/redis"))
	assert.Equal(t, "golang", RepositoryBase("golang"))
}

func TestKnowledgeBase_Detect(t *testing.T) {
	kb := DefaultKnowledgeBase()

	l, ok := kb.Detect("golang", nil)
	require.True(t, ok)
	assert.Equal(t, LevelMinor, l)

	l, ok = kb.Detect("registry.example.com/library/NODE", nil)
	require.True(t, ok)
	assert.Equal(t, LevelMajor, l)

	_, ok = kb.Detect("acme/widget", nil)
	assert.False(t, ok)
}

func TestStatistical_Detect(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want Level
		ok   bool
	}{
		{"major changes", []string{"1.0.0", "2.0.0", "3.0.0", "4.0.0"}, LevelMajor, true},
		{"minor changes", []string{"1.0.0", "1.1.0", "1.2.0", "1.3.0"}, LevelMinor, true},
		{"patch changes", []string{"2.4.1", "2.4.2", "2.4.3"}, LevelPatch, true},
		{"golang history", []string{"1.20-alpine", "1.21.5-alpine", "1.22", "1.24.2-alpine"}, LevelMinor, true},
		{"single series dominates", []string{"3.1.0", "3.1.1", "3.1.2", "2.9.0"}, LevelMajor, true},
		{"no variation", []string{"5.0", "5.0"}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Statistical{}.Detect("unknown", pool(tt.tags...))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStatistical_MinDistinct(t *testing.T) {
	p := pool("1.0.0", "2.0.0", "2.1.0", "2.2.0", "2.3.0")

	l, ok := Statistical{}.Detect("x", p)
	require.True(t, ok)
	assert.Equal(t, LevelMajor, l)

	// two majors are not enough variation when three distinct values are required
	l, ok = Statistical{MinDistinct: 3}.Detect("x", p)
	require.True(t, ok)
	assert.Equal(t, LevelMinor, l)
}

func TestDetectLevel(t *testing.T) {
	d := DefaultDetector()

	assert.Equal(t, LevelPatch, DetectLevel(d, LevelPatch, "golang", nil), "override wins")
	assert.Equal(t, LevelMinor, DetectLevel(d, 0, "golang", pool("1", "2", "3")), "knowledge base beats inference")
	assert.Equal(t, LevelMajor, DetectLevel(d, 0, "acme/widget", pool("1", "2", "3")))
	assert.Equal(t, LevelMinor, DetectLevel(d, 0, "acme/widget", nil), "empty pool defaults to minor")
	assert.Equal(t, LevelMinor, DetectLevel(nil, 0, "acme/widget", pool("1", "2")))
}

func TestChainAndFixed(t *testing.T) {
	c := Chain{nil, Fixed(0), Fixed(LevelPatch), DefaultKnowledgeBase()}
	l, ok := c.Detect("node", nil)
	require.True(t, ok)
	assert.Equal(t, LevelPatch, l)
}
