package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
	"github.com/Patrick2402/image-version-analyzer/pkg/config"
	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
	"github.com/Patrick2402/image-version-analyzer/pkg/output"
	"github.com/Patrick2402/image-version-analyzer/pkg/registry"
	"github.com/Patrick2402/image-version-analyzer/pkg/source"
)

// hostKind describes one repository host the scan commands support.
type hostKind struct {
	name       string // GitHub, GitLab
	command    string
	ownerFlag  string // org, group
	ownerUsage string
	tokenEnv   string
	defaultURL string
	build      func(owner, token string, org bool, url string) source.Host
}

var (
	githubKind = hostKind{
		name:       "GitHub",
		command:    "github-scan",
		ownerFlag:  "org",
		ownerUsage: "GitHub organization to scan",
		tokenEnv:   "GITHUB_TOKEN",
		defaultURL: source.DefaultGitHubURL,
		build: func(owner, token string, org bool, url string) source.Host {
			gh := source.NewGitHub(owner, token, org)
			gh.BaseURL = url
			return gh
		},
	}
	gitlabKind = hostKind{
		name:       "GitLab",
		command:    "gitlab-scan",
		ownerFlag:  "group",
		ownerUsage: "GitLab group to scan, subgroups included",
		tokenEnv:   "GITLAB_TOKEN",
		defaultURL: source.DefaultGitLabURL,
		build: func(owner, token string, group bool, url string) source.Host {
			gl := source.NewGitLab(owner, token, group)
			gl.BaseURL = url
			return gl
		},
	}
)

type scanOptions struct {
	analyzeOptions

	org        string
	user       string
	token      string
	url        string
	maxWorkers int
	outputDir  string
}

func newGitHubScanCmd(root *rootOptions) *cobra.Command {
	return newScanCmd(root, githubKind)
}

func newGitLabScanCmd(root *rootOptions) *cobra.Command {
	return newScanCmd(root, gitlabKind)
}

func newScanCmd(root *rootOptions, kind hostKind) *cobra.Command {
	opts := &scanOptions{analyzeOptions: analyzeOptions{root: root}}

	cmd := &cobra.Command{
		Use:   kind.command,
		Short: fmt.Sprintf("Analyze the Dockerfiles of every repository of a %s %s or user", kind.name, kind.ownerFlag),
		Long: fmt.Sprintf(`Find the Dockerfiles in all repositories of a %[1]s %[2]s (--%[2]s) or user (--user),
analyze their base images and print one combined report. With --output-dir a report is
also written for every Dockerfile.

The token defaults to $%[3]s. Exit code is 1 when at least one image is OUTDATED.`, kind.name, kind.ownerFlag, kind.tokenEnv),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}

			report, err := runScan(cmd.Context(), cmd.OutOrStdout(), cfg, opts, opts.host(kind))
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
	f.StringVar(&opts.org, kind.ownerFlag, "", kind.ownerUsage)
	f.StringVar(&opts.user, "user", "", kind.name+" user to scan")
	f.StringVar(&opts.token, "token", "", kind.name+" access token (default: $"+kind.tokenEnv+")")
	f.StringVar(&opts.url, "url", kind.defaultURL, kind.name+" API URL")
	f.IntVar(&opts.maxWorkers, "max-workers", source.DefaultMaxWorkers, "Number of repositories scanned in parallel")
	f.StringVar(&opts.outputDir, "output-dir", "", "Also write one report per Dockerfile into this directory")
	cmd.MarkFlagsOneRequired(kind.ownerFlag, "user")
	cmd.MarkFlagsMutuallyExclusive(kind.ownerFlag, "user")

	return cmd
}

// host builds the repository host from the flags.
func (o *scanOptions) host(kind hostKind) source.Host {
	token := o.token
	if token == "" {
		token = os.Getenv(kind.tokenEnv)
	}
	if token == "" {
		logger.Warnf("No %s token given, only public repositories are visible", kind.name)
	}
	if o.org != "" {
		return kind.build(o.org, token, true, o.url)
	}
	return kind.build(o.user, token, false, o.url)
}

// runScan analyzes every Dockerfile of host and renders the combined report.
func runScan(ctx context.Context, stdout io.Writer, cfg *config.Config, opts *scanOptions, host source.Host) (*analyzer.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := source.Scan(ctx, host, opts.maxWorkers)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warnf("No Dockerfiles found for %s", host.Owner())
	} else {
		logger.Infof("Found %d Dockerfile(s) for %s", len(files), host.Owner())
	}

	a, err := newAnalyzer(cfg, &opts.analyzeOptions)
	if err != nil {
		return nil, err
	}
	// Dockerfiles of one owner share most base images.
	a.Fetcher = registry.NewCache(a.Fetcher)

	var (
		results []analyzer.AnalysisResult
		ignored []string
	)
	for _, f := range files {
		report, err := a.Analyze(ctx, f.References())
		if err != nil {
			return nil, fmt.Errorf("analysis failed: %w", err)
		}
		report.Source = f.Location()
		for i := range report.Results {
			report.Results[i].Source = f.Location()
		}

		if opts.outputDir != "" {
			if err := writeFileReport(cfg, opts, f, report); err != nil {
				return nil, err
			}
		}

		results = append(results, report.Results...)
		for _, img := range report.Ignored {
			ignored = append(ignored, img+" ("+f.Location()+")")
		}
	}

	report := analyzer.NewReport(results, ignored)
	report.Source = host.Owner()

	if err := render(stdout, cfg, &opts.analyzeOptions, report, nil); err != nil {
		return nil, err
	}
	if opts.outputDir != "" {
		logger.Infof("Per-Dockerfile reports written to %s", opts.outputDir)
	}

	if opts.slackNotify {
		notifySlack(ctx, cfg, report, report.Source)
	}

	return report, nil
}

// writeFileReport writes the report of one Dockerfile as
// <output-dir>/<repo>_<path>.<ext>.
func writeFileReport(cfg *config.Config, opts *scanOptions, f source.RemoteDockerfile, report *analyzer.Report) error {
	formatter, err := output.New(cfg.Output.Format, output.Options{
		NoColor:     true,
		NoTimestamp: cfg.Output.NoTimestamp,
		Version:     Version,
		Lines:       f.Lines(),
	})
	if err != nil {
		return err
	}

	name := reportName(f) + "." + output.Extension(cfg.Output.Format)
	return output.WriteFile(filepath.Join(opts.outputDir, name), formatter, report)
}

// reportName flattens repo and path into one file name.
func reportName(f source.RemoteDockerfile) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(f.Repository.Name + "/" + f.Path)
}
