package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the defunc application
var rootCmd = &cobra.Command{
	Use:   "defunc",
	Short: "Trace watched method calls and audit object lifetimes",
	Long: `defunc intercepts calls to watched operations, prints indented enter/exit
trace lines with arguments, return values and live-object deltas, and reports
instances that stay alive longer than a configurable threshold.

The demo command runs a set of example types through the engine.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "defunc version %s\n" .Version}}`)

	// If no subcommand is provided, run the demo command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "demo")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newVersionCmd())
}
