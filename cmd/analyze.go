package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
	"github.com/Patrick2402/image-version-analyzer/pkg/config"
	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
	"github.com/Patrick2402/image-version-analyzer/pkg/notify"
	"github.com/Patrick2402/image-version-analyzer/pkg/output"
	"github.com/Patrick2402/image-version-analyzer/pkg/registry"
	"github.com/Patrick2402/image-version-analyzer/pkg/source"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// defaultDockerfile is analyzed when no other input is given.
const defaultDockerfile = "Dockerfile"

// newFetcher builds the tag fetcher for a run. Tests replace it.
var newFetcher = func(cfg *config.Config) registry.TagFetcher {
	hub := registry.NewHubClient(cfg.Hub.RPS)
	hub.BaseURL = cfg.Hub.URL
	if cfg.Hub.MaxPages > 0 {
		hub.MaxPages = cfg.Hub.MaxPages
	}
	return registry.NewRouter(hub)
}

// listLocal returns the images of the local Docker daemon. Tests replace it.
var listLocal = source.LocalImages

type analyzeOptions struct {
	root *rootOptions

	threshold         int
	level             string
	rulesFile         string
	ignore            []string
	ignoreFile        string
	privateRegistries []string
	registriesFile    string
	showTags          bool
	images            []string
	local             bool
	format            string
	reportFile        string
	noTimestamp       bool
	noColor           bool
	slackNotify       bool
	slackWebhook      string
	reportURL         string
	concurrency       int
}

// input is the list of references to analyze and where they came from.
type input struct {
	refs   []string
	source string
	lines  map[string]int
}

// newAnalyzeCmd represents the analyze subcommand
func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{root: root}

	cmd := &cobra.Command{
		Use:   "analyze [Dockerfile...]",
		Short: "Analyze base image versions",
		Long: `Analyze the FROM images of one or more Dockerfiles (default: ./Dockerfile), the images
given with --image, or the images in the local Docker daemon with --local.

Exit code is 1 when at least one image is OUTDATED.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}

			report, err := runAnalyze(cmd.Context(), cmd.OutOrStdout(), cfg, opts, args)
			if err != nil {
				return err
			}
			if report.ExitCode() != 0 {
				return ErrOutdated
			}
			return nil
		},
	}

	opts.addFlags(cmd)
	f := cmd.Flags()
	f.StringArrayVar(&opts.images, "image", nil, "Image reference to analyze (repeatable)")
	f.BoolVar(&opts.local, "local", false, "Analyze images present in the local Docker daemon")

	return cmd
}

// addFlags registers the analysis flags shared by analyze and the scan
// commands.
func (o *analyzeOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&o.threshold, "threshold", "t", analyzer.DefaultThreshold, "Maximum number of versions behind before an image is OUTDATED")
	f.StringVarP(&o.level, "level", "l", "", "Force the comparison level: major, minor or patch (default: detected per repository)")
	f.StringVarP(&o.rulesFile, "rules", "r", "", "Path to a JSON rules file")
	f.StringArrayVarP(&o.ignore, "ignore", "i", nil, "Ignore images matching a pattern (wildcards or regex:<expr>, repeatable)")
	f.StringVar(&o.ignoreFile, "ignore-file", "", "File with one ignore pattern per line")
	f.StringArrayVar(&o.privateRegistries, "private-registry", nil, "Private registry prefix to strip before lookup (repeatable)")
	f.StringVar(&o.registriesFile, "private-registries-file", "", "File with one private registry prefix per line")
	f.BoolVar(&o.showTags, "tags", false, "List the available tags of the same variant for each image")
	f.StringVarP(&o.format, "format", "f", "text", "Output format: "+strings.Join(output.Formats(), ", "))
	f.StringVarP(&o.reportFile, "report-file", "o", "", "Write the report to a file instead of stdout")
	f.BoolVar(&o.noTimestamp, "no-timestamp", false, "Omit the analysis timestamp from the report")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	f.BoolVar(&o.slackNotify, "slack-notify", false, "Send a summary to Slack")
	f.StringVar(&o.slackWebhook, "slack-webhook", "", "Slack webhook URL (default: $SLACK_WEBHOOK_URL)")
	f.StringVar(&o.reportURL, "report-url", "", "Link to the full report, shown in the Slack message")
	f.IntVar(&o.concurrency, "concurrency", 4, "Number of repositories fetched in parallel")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return config.LoadConfig(path)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.FindAndLoadConfig(wd)
}

// apply lets explicitly set flags override the config file.
func (o *analyzeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("threshold") {
		cfg.Threshold = o.threshold
	}
	if f.Changed("level") {
		cfg.Level = o.level
	}
	if f.Changed("rules") {
		cfg.Rules = o.rulesFile
	}
	if f.Changed("ignore-file") {
		cfg.IgnoreFile = o.ignoreFile
	}
	if f.Changed("private-registries-file") {
		cfg.PrivateRegistriesFile = o.registriesFile
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if f.Changed("format") || cfg.Output.Format == "" {
		cfg.Output.Format = o.format
	}
	if f.Changed("report-file") {
		cfg.Output.File = o.reportFile
	}
	if o.noTimestamp {
		cfg.Output.NoTimestamp = true
	}
	if o.slackWebhook != "" {
		cfg.Slack.Webhook = o.slackWebhook
	}
	if o.reportURL != "" {
		cfg.Slack.ReportURL = o.reportURL
	}
	cfg.Ignore = append(cfg.Ignore, o.ignore...)
	cfg.PrivateRegistries = append(cfg.PrivateRegistries, o.privateRegistries...)

	return cfg.Validate()
}

// runAnalyze collects the references, analyzes them and renders the report.
func runAnalyze(ctx context.Context, stdout io.Writer, cfg *config.Config, opts *analyzeOptions, args []string) (*analyzer.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	in, err := collect(ctx, opts, args)
	if err != nil {
		return nil, err
	}
	if len(in.refs) == 0 {
		logger.Warnf("No images found in %s", in.source)
	}

	a, err := newAnalyzer(cfg, opts)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Analyzing %d image(s) from %s (threshold %d, level %s)", len(in.refs), in.source, cfg.Threshold, levelName(a.Level))
	report, err := a.Analyze(ctx, in.refs)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	report.Source = in.source

	if err := render(stdout, cfg, opts, report, in.lines); err != nil {
		return nil, err
	}

	if opts.slackNotify {
		notifySlack(ctx, cfg, report, in.source)
	}

	return report, nil
}

// newAnalyzer builds an Analyzer from the effective configuration.
func newAnalyzer(cfg *config.Config, opts *analyzeOptions) (*analyzer.Analyzer, error) {
	level, err := cfg.ComparisonLevel()
	if err != nil {
		return nil, err
	}
	set, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	matcher, err := cfg.IgnoreMatcher()
	if err != nil {
		return nil, err
	}
	registries, err := cfg.Registries()
	if err != nil {
		return nil, err
	}

	if n := matcher.Len(); n > 0 {
		logger.Infof("Using %d ignore pattern(s)", n)
		logger.Debug("Ignore patterns", "patterns", matcher.Patterns())
	}
	if len(registries) > 0 {
		logger.Infof("Using private registries: %s", strings.Join(registries, ", "))
	}
	if len(set) > 0 {
		logger.Infof("Loaded %d custom rule(s)", len(set))
	}

	a := analyzer.New(newFetcher(cfg))
	a.Threshold = cfg.Threshold
	a.Level = level
	a.Rules = set
	a.Ignore = matcher
	a.PrivateRegistries = registries
	a.Concurrency = cfg.Concurrency
	a.ShowTags = opts.showTags
	return a, nil
}

// notifySlack sends the report summary. Failures are logged, not returned.
func notifySlack(ctx context.Context, cfg *config.Config, report *analyzer.Report, source string) {
	notifier := notify.NewSlack(cfg.Slack.Webhook)
	notifier.ReportURL = cfg.Slack.ReportURL
	extra := map[string]string{
		"Threshold": strconv.Itoa(cfg.Threshold),
		"Run":       report.RunID,
	}
	if err := notifier.Send(ctx, report, source, extra); err != nil {
		logger.Errorf("Slack notification failed: %v", err)
	} else {
		logger.Infof("Slack notification sent")
	}
}

func levelName(l version.Level) string {
	if !l.Valid() {
		return "auto"
	}
	return l.String()
}

// collect gathers references from Dockerfiles, --image and --local.
func collect(ctx context.Context, opts *analyzeOptions, args []string) (input, error) {
	in := input{lines: map[string]int{}}
	var sources []string

	files := args
	if len(files) == 0 && len(opts.images) == 0 && !opts.local {
		files = []string{defaultDockerfile}
	}

	for _, path := range files {
		images, err := source.Dockerfile(path)
		if err != nil {
			return in, err
		}
		logger.Debugf("Found %d base image(s) in %s", len(images), path)
		for _, img := range images {
			in.refs = append(in.refs, img.Image)
			if _, ok := in.lines[img.Image]; !ok {
				in.lines[img.Image] = img.Line
			}
		}
		sources = append(sources, path)
	}

	if len(opts.images) > 0 {
		in.refs = append(in.refs, opts.images...)
		sources = append(sources, "command line")
	}

	if opts.local {
		local, err := listLocal(ctx)
		if err != nil {
			return in, err
		}
		in.refs = append(in.refs, local...)
		sources = append(sources, "local Docker daemon")
	}

	in.source = strings.Join(sources, ", ")
	return in, nil
}

func render(stdout io.Writer, cfg *config.Config, opts *analyzeOptions, report *analyzer.Report, lines map[string]int) error {
	formatter, err := output.New(cfg.Output.Format, output.Options{
		NoColor:     opts.noColor || cfg.Output.File != "",
		NoTimestamp: cfg.Output.NoTimestamp,
		Version:     Version,
		Lines:       lines,
	})
	if err != nil {
		return err
	}

	if cfg.Output.File == "" {
		return formatter.Format(stdout, report)
	}

	if err := output.WriteFile(cfg.Output.File, formatter, report); err != nil {
		return err
	}
	logger.Infof("Report written to %s", cfg.Output.File)
	return nil
}
