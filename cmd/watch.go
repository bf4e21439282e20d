package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conneroisu/arbor/internal/config"
	"github.com/conneroisu/arbor/internal/logging"
	"github.com/conneroisu/arbor/internal/watcher"
)

func newWatchCommand(a *app) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:     "watch [project-dir]",
		Aliases: []string{"w"},
		Short:   "Build, then rebuild whenever a project file changes",
		Long: `Build the project once, then watch its directory tree and rebuild after
every burst of changes. A failing build is reported and watching goes on.

Examples:
  arbor watch                     # Watch the project in the current directory
  arbor watch site --debounce 1s  # Wait for one quiet second before rebuilding`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindBuildFlags(cmd.Flags()); err != nil {
				return err
			}
			return a.v.BindPFlag("watch.debounce", cmd.Flags().Lookup("debounce"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addBuildFlags(watchCmd.Flags())
	watchCmd.Flags().Duration("debounce", config.DefaultDebounce, "quiet period before a rebuild")
	return watchCmd
}

// runWatch builds once and rebuilds on changes until ctx is done.
func runWatch(ctx context.Context, cfg *config.Config, logger logging.Logger, stdout, stderr io.Writer) error {
	r := &rebuilder{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	r.rebuild(ctx, nil)

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.ExcludeDir(cfg.OutputDir()))
	fileWatcher.AddFilter(watcher.IgnoreFilter(cfg.Project.Dir, cfg.Watch.Ignore))
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		r.rebuild(ctx, events)
		return nil
	})

	if err := fileWatcher.AddRecursive(cfg.Project.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Project.Dir, err)
	}
	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(stdout, "Watching %s for changes (Ctrl+C to stop)\n", cfg.Project.Dir)
	<-ctx.Done()
	fmt.Fprintln(stdout, "Stopping watcher")
	return nil
}

// rebuilder serialises builds: a build engine instance is single shot and
// never runs twice at once.
type rebuilder struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger logging.Logger
	stdout io.Writer
	stderr io.Writer
	builds int
	fails  int
}

func (r *rebuilder) rebuild(ctx context.Context, events []watcher.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if len(events) > 0 {
		fmt.Fprintf(r.stdout, "%s %d file(s) changed\n", color.YellowString("~"), len(events))
		for _, event := range events {
			r.logger.Debug(ctx, "change", "type", event.Type.String(), "path", event.Path)
		}
	}

	r.builds++
	result, err := buildOnce(ctx, r.cfg, r.logger)
	if err != nil {
		r.fails++
		report(r.stderr, color.RedString("✗ build failed:"), err)
		return
	}
	printSummary(r.stdout, r.cfg, result)
}
