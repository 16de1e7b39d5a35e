package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Patrick2402/image-version-analyzer/pkg/ignore"
	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
	"github.com/Patrick2402/image-version-analyzer/pkg/registry"
	"github.com/Patrick2402/image-version-analyzer/pkg/rules"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// AnalysisResult represents the verdict for a single image reference.
// Current, Recommended and Gap are nil when they could not be determined.
type AnalysisResult struct {
	Image       string   `json:"image" yaml:"image"` // reference as written in the source
	Status      Status   `json:"status" yaml:"status"`
	Current     *string  `json:"current" yaml:"current"`
	Recommended *string  `json:"recommended" yaml:"recommended"`
	Gap         *int     `json:"gap" yaml:"gap"`
	Level       string   `json:"level,omitempty" yaml:"level,omitempty"`
	Missing     []string `json:"missing_versions,omitempty" yaml:"missing_versions,omitempty"`
	Message     string   `json:"message" yaml:"message"`
	Similar     []string `json:"similar_tags,omitempty" yaml:"similar_tags,omitempty"` // same-variant tags, newest first
	Source      string   `json:"source,omitempty" yaml:"source,omitempty"`             // file the reference came from, when scanning
}

// Summary tallies results by status
type Summary struct {
	Total    int `json:"total" yaml:"total"`
	UpToDate int `json:"up_to_date" yaml:"up_to_date"`
	Outdated int `json:"outdated" yaml:"outdated"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Unknown  int `json:"unknown" yaml:"unknown"`
	Ignored  int `json:"ignored" yaml:"ignored"`
}

// Report is everything one run produces, handed to the renderers.
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Source      string           `json:"source,omitempty" yaml:"source,omitempty"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Results     []AnalysisResult `json:"results" yaml:"results"`
	Ignored     []string         `json:"ignored" yaml:"ignored"`
	Summary     Summary          `json:"summary" yaml:"summary"`
}

// NewReport builds a report and its summary.
func NewReport(results []AnalysisResult, ignored []string) *Report {
	if results == nil {
		results = []AnalysisResult{}
	}
	if ignored == nil {
		ignored = []string{}
	}
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Ignored:     ignored,
	}
	r.Summary = Summarize(results, ignored)
	return r
}

// Summarize counts results per status.
func Summarize(results []AnalysisResult, ignored []string) Summary {
	s := Summary{Total: len(results), Ignored: len(ignored)}
	for _, r := range results {
		switch r.Status {
		case StatusUpToDate:
			s.UpToDate++
		case StatusOutdated:
			s.Outdated++
		case StatusWarning:
			s.Warnings++
		default:
			s.Unknown++
		}
	}
	return s
}

// ByStatus returns the results with the given status, in order.
func (r *Report) ByStatus(status Status) []AnalysisResult {
	var out []AnalysisResult
	for _, res := range r.Results {
		if res.Status == status {
			out = append(out, res)
		}
	}
	return out
}

// ExitCode is 1 when any image is OUTDATED.
func (r *Report) ExitCode() int {
	if r.Summary.Outdated > 0 {
		return 1
	}
	return 0
}

// Analyzer runs the freshness pipeline over a list of image references.
// Rules and ignore patterns are read-only once Analyze starts.
type Analyzer struct {
	Fetcher           registry.TagFetcher
	Rules             rules.Set
	Ignore            *ignore.Matcher
	Threshold         int
	Level             version.Level // zero means detect per repository
	PrivateRegistries []string
	Concurrency       int  // parallel tag fetches
	ShowTags          bool // fill AnalysisResult.Similar
	Detector          version.Detector
}

// New creates an Analyzer with default threshold, concurrency and level
// detection.
func New(fetcher registry.TagFetcher) *Analyzer {
	return &Analyzer{
		Fetcher:     fetcher,
		Threshold:   DefaultThreshold,
		Concurrency: registry.DefaultConcurrency,
		Detector:    version.DefaultDetector(),
	}
}

// pending is an image that got past ignore filtering.
type pending struct {
	ref    registry.Reference
	err    error
	result *AnalysisResult // set when the verdict is known without tags
}

// Analyze classifies every reference. Ignored references go to
// Report.Ignored; per-image problems become UNKNOWN or WARNING results.
// The only error is context cancellation.
func (a *Analyzer) Analyze(ctx context.Context, refs []string) (*Report, error) {
	var (
		ignored []string
		work    []pending
		fetch   []registry.Reference
	)

	for _, raw := range refs {
		if pattern, ok := a.Ignore.Match(raw); ok {
			logger.Debugf("Analyzer: Ignoring %s (matched %q)", raw, pattern)
			ignored = append(ignored, raw)
			continue
		}

		p := pending{}
		p.ref, p.err = registry.ParseReference(raw, a.PrivateRegistries)
		if res := a.precheck(raw, p.ref, p.err); res != nil {
			p.result = res
		} else {
			fetch = append(fetch, p.ref)
		}
		work = append(work, p)
	}

	var tags map[string]registry.TagList
	if len(fetch) > 0 && a.Fetcher != nil {
		tags = registry.Prefetch(ctx, a.Fetcher, fetch, a.Concurrency)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]AnalysisResult, 0, len(work))
	for _, p := range work {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.result != nil {
			results = append(results, *p.result)
			continue
		}

		tl := tags[p.ref.Key()]
		results = append(results, a.analyzeImage(p.ref, tl))
	}

	return NewReport(results, ignored), nil
}

// precheck returns a final result for references that cannot be compared
// at all, or nil when tags are needed.
func (a *Analyzer) precheck(raw string, ref registry.Reference, err error) *AnalysisResult {
	res := &AnalysisResult{Image: raw, Status: StatusUnknown}

	switch {
	case errors.Is(err, registry.ErrNoTag):
		res.Message = "No explicit tag specified (using 'latest')"
	case err != nil:
		res.Message = fmt.Sprintf("Invalid image reference: %v", err)
	case ref.Tag == "":
		res.Message = "Image is pinned by digest, no tag to compare"
	default:
		if _, perr := version.Parse(ref.Tag); perr != nil {
			res.Current = strPtr(ref.Tag)
			res.Message = fmt.Sprintf("Tag %q could not be interpreted as a version", ref.Tag)
			return res
		}
		return nil
	}
	return res
}

// analyzeImage runs parse, level detection, recommendation, gap and
// classification for one image whose current tag is a version.
func (a *Analyzer) analyzeImage(ref registry.Reference, tl registry.TagList) AnalysisResult {
	current := version.MustParse(ref.Tag)
	res := AnalysisResult{Image: ref.Raw, Current: strPtr(ref.Tag)}

	rule := a.Rules.Lookup(ref.Repository())
	var notes []string
	if rule.Ambiguous() {
		notes = append(notes, "step_by ignored without lts_versions")
	}

	pool, rejected := Candidates(tl.Tags, rule)
	logger.Debugf("Analyzer: %s: %d candidates, %d rejected", ref.Name(), len(pool), len(rejected))

	if len(pool) == 0 {
		res.Status = Classify(ClassifyInput{Parsed: true})
		res.Message = "No tags found or repository not accessible"
		if tl.Err != nil {
			logger.Warn("Could not fetch tags", "image", ref.Name(), "err", tl.Err)
		}
		res.Message = withNotes(res.Message, notes)
		return res
	}

	level := a.levelFor(ref, rule, pool)
	res.Level = level.String()
	if a.ShowTags {
		res.Similar = SimilarTags(current, pool)
	}

	recommended, _ := Recommend(current, pool, level, rule)
	gap := CalculateGap(current, recommended, level, rule)
	violated := level == version.LevelMajor && rule.HasLTS() && !rule.IsLTS(current.Major())

	res.Recommended = strPtr(recommended.Tag())
	res.Gap = intPtr(gap.Gap)
	res.Missing = gap.Missing
	res.Status = Classify(ClassifyInput{
		Parsed:        true,
		HasCandidates: true,
		Gap:           gap.Gap,
		Threshold:     a.Threshold,
		Violated:      violated,
	})
	res.Message = withNotes(describe(res.Status, gap, level, a.Threshold, violated), notes)

	return res
}

// levelFor applies the precedence: --level, rule level, then detection.
func (a *Analyzer) levelFor(ref registry.Reference, rule *rules.Rule, pool []version.Version) version.Level {
	override := a.Level
	if !override.Valid() && rule != nil && rule.Level != nil {
		override = *rule.Level
	}
	d := a.Detector
	if d == nil {
		d = version.DefaultDetector()
	}
	return version.DetectLevel(d, override, ref.Repository(), pool)
}

func describe(status Status, gap GapResult, level version.Level, threshold int, violated bool) string {
	behind := fmt.Sprintf("Image is %d %s version(s) behind", gap.Gap, level)
	if gap.Steps {
		behind = fmt.Sprintf("Image is %d LTS step(s) behind", gap.Gap)
	}

	switch {
	case status == StatusOutdated && violated:
		return behind + " and violates LTS policy"
	case status == StatusOutdated:
		return behind
	case gap.Gap > 0 && violated:
		return behind + " but within threshold (" + fmt.Sprint(threshold) + ") and violates LTS policy"
	case gap.Gap > 0:
		return behind + " but within threshold (" + fmt.Sprint(threshold) + ")"
	case violated:
		return "Current major version is not an LTS release"
	default:
		return "Image is up-to-date"
	}
}

func withNotes(msg string, notes []string) string {
	if len(notes) == 0 {
		return msg
	}
	return msg + "; " + strings.Join(notes, "; ")
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
