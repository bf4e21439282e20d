// Package cmd provides the arbor command-line interface.
//
// Configuration sources, highest precedence first:
//
//  1. Command-line flags (--output, --number, --log-level, ...)
//  2. ARBOR_<SECTION>_<OPTION> environment variables, e.g. ARBOR_BUILD_NUMBER
//  3. The config file: --config, else ARBOR_CONFIG_FILE, else .arbor.yml
//  4. Built-in defaults
//
// A .env file in the working directory is loaded before the environment is
// consulted; it never overrides variables that are already set.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/arbor/internal/config"
	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
)

// app carries the state shared by one command tree.
type app struct {
	v         *viper.Viper
	cfgFile   string
	configErr error
}

// NewRootCommand assembles the arbor command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "arbor",
		Short: "Build static multi-locale sites from composable HTML components",
		Long: `Arbor turns a project of HTML layouts, style sheets, scripts, string
tables and media into a static site: one page per locale, with components
inlined, templates applied and every referenced resource copied next to it.

Quick Start:
  arbor build                 Build the project in the current directory
  arbor build site -n 42      Build ./site with build number 42
  arbor watch                 Rebuild whenever a source file changes

Command Aliases:
  build (b), watch (w)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initConfig(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .arbor.yml, can also use ARBOR_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (text, json)")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(
		newBuildCommand(a),
		newWatchCommand(a),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the command tree and reports a failure on stderr.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		report(rootCmd.ErrOrStderr(), color.RedString("Error:"), err)
		return err
	}
	return nil
}

// initConfig selects and reads the config file. Errors are kept for the
// command to report, since cobra's initialisers cannot fail.
func (a *app) initConfig(stderr io.Writer) {
	used, err := config.Setup(a.v, a.cfgFile, ".")
	if err != nil {
		a.configErr = err
		return
	}
	if used != "" {
		fmt.Fprintln(stderr, "Using config file:", used)
	}
}

// load returns the validated configuration, taking the project directory
// from the first argument when given.
func (a *app) load(args []string) (*config.Config, logging.Logger, error) {
	if a.configErr != nil {
		return nil, nil, a.configErr
	}
	if len(args) > 0 {
		a.v.Set("project.dir", args[0])
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(cfg.LoggerConfig(os.Stderr)).WithComponent("cli")
	return cfg, logger, nil
}

// addBuildFlags declares the flags shared by build and watch. They are bound
// to the configuration when the command runs, so each command reads its own.
func addBuildFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "output directory, relative to the project (default \""+config.DefaultOutput+"\")")
	flags.IntP("number", "n", 0, "build number inserted before each file extension")
	flags.Bool("clean", false, "remove the output directory before building")
}

func (a *app) bindBuildFlags(flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"build.output": "output",
		"build.number": "number",
		"build.clean":  "clean",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// report prints err with any fix hints known for it.
func report(w io.Writer, label string, err error) {
	title := fmt.Sprintf("%s %v", label, err)
	fmt.Fprintln(w, strings.TrimRight(arborerrors.FormatSuggestions(title, arborerrors.Suggest(err)), "\n"))
}
