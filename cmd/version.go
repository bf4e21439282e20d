package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/arbor/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		format string
		short  bool
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the arbor version, commit, build time, Go version and platform.

Examples:
  arbor version                # Show all build information
  arbor version --short        # Show the version only
  arbor version --format json  # Output as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "text":
				if short {
					fmt.Fprintln(out, info.Short())
				} else {
					fmt.Fprintln(out, info.String())
				}
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
			}
		},
	}

	versionCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&short, "short", false, "Show short version only")
	return versionCmd
}
