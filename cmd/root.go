package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

// Version is set during build using ldflags
var Version = "dev"

// ErrOutdated is returned by analyze when at least one image is OUTDATED.
// It maps to exit code 1 without an error message.
var ErrOutdated = errors.New("outdated images found")

type rootOptions struct {
	configPath string
	verbose    bool
}

// newRootCmd builds the base command when called without any subcommands
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "imgcheck",
		Short: "Checks Docker base images for newer versions",
		Long: `imgcheck analyzes the image references in Dockerfiles, on the command line or in the
local Docker daemon, compares each tag with the tags published in its registry and
reports how far behind it is. github-scan and gitlab-scan do the same for every
Dockerfile of an organization, group or user.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.ConfigureFromEnv()
			if opts.verbose {
				logger.SetVerbose(true)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: .imgcheck.yaml in the current or a parent directory)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newGitHubScanCmd(opts))
	cmd.AddCommand(newGitLabScanCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("Could not load .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, ErrOutdated) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
