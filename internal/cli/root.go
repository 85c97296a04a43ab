// Package cli implements hintctl, which runs a hint session over a local
// HTML file and prints the resulting hints.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hintd"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hintctl",
		Short:         "Run hint sessions against local HTML files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `hintctl loads an HTML page and its nested frames from disk, enters hint
mode and replays navigation commands against it. It prints the hints in
document order with the active one marked.`,
	}

	runCmd := &cobra.Command{
		Use:   "run <file.html>",
		Short: "Enter hint mode on a page and replay commands",
		Args:  cobra.ExactArgs(1),
		RunE:  RunHints,
	}
	runCmd.Flags().String("query", "", "CSS selector for hintable elements (default: built-in)")
	runCmd.Flags().String("strategy", string(hintd.Sequential), "Labelling strategy: sequential|prefix")
	runCmd.Flags().String("alphabet", hintd.DefaultAlphabet, "Prefix code alphabet")
	runCmd.Flags().StringArray("filter", nil, "Filter text, applied in order (repeatable)")
	runCmd.Flags().Int("next", 0, "Activate the next hint N times")
	runCmd.Flags().Int("prev", 0, "Activate the previous hint N times")
	runCmd.Flags().String("select", "", "Activate the hint with this label")
	runCmd.Flags().Bool("follow", false, "Follow the active hint")
	runCmd.Flags().Int("max-depth", 0, "Maximum frame nesting depth (0 = unlimited)")
	runCmd.Flags().Bool("json", false, "Print machine-readable output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hintctl %s\n", version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	return rootCmd
}
