package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/arbor/internal/build"
	"github.com/conneroisu/arbor/internal/config"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/project"
	"github.com/conneroisu/arbor/internal/validation"
)

func newBuildCommand(a *app) *cobra.Command {
	buildCmd := &cobra.Command{
		Use:     "build [project-dir]",
		Aliases: []string{"b"},
		Short:   "Build every page of the project for every locale",
		Long: `Build every page of the project for every locale into the output directory.

Examples:
  arbor build                     # Build the project in the current directory
  arbor build site                # Build ./site into ./site/build
  arbor build -o /srv/www -n 7    # Build elsewhere, naming files like index-007.htm
  arbor build --clean             # Remove the previous output first`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindBuildFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(args)
			if err != nil {
				return err
			}
			result, err := buildOnce(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg, result)
			return nil
		},
	}
	addBuildFlags(buildCmd.Flags())
	return buildCmd
}

// buildOnce loads the project afresh and runs one build into the configured
// output directory.
func buildOnce(ctx context.Context, cfg *config.Config, logger logging.Logger) (*build.Result, error) {
	p, err := project.Load(ctx, cfg.Project.Dir,
		project.WithLogger(logger),
		project.WithExcludes(outputExcludes(cfg)...))
	if err != nil {
		return nil, err
	}

	b := build.New(p, build.Config{
		Output: cfg.OutputDir(),
		Number: cfg.Build.Number,
		Clean:  cfg.Build.Clean,
	}, afero.NewOsFs(), logger)
	return b.Build(ctx)
}

// outputExcludes keeps an output directory that lives inside the project
// out of the project scans.
func outputExcludes(cfg *config.Config) []string {
	root, err := filepath.Abs(cfg.Project.Dir)
	if err != nil {
		return nil
	}
	out, err := filepath.Abs(cfg.OutputDir())
	if err != nil || !validation.Inside(root, out) {
		return nil
	}
	rel, err := filepath.Rel(root, out)
	if err != nil || rel == "." {
		return nil
	}
	return []string{filepath.ToSlash(rel)}
}

func printSummary(w io.Writer, cfg *config.Config, result *build.Result) {
	fmt.Fprintf(w, "%s Built %d page(s) in %d locale(s), %d file(s) in %s\n",
		color.GreenString("✓"), result.Pages, result.Locales, result.Files, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %s %s\n", color.CyanString("output:"), cfg.OutputDir())
	fmt.Fprintf(w, "  %s %s\n", color.CyanString("run:   "), result.RunID)
}
