package auditkit

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagThreads    int
	flagNoColor    bool
	flagDebug      bool
	flagConfigPath string

	version = "0.1.0"

	osExit = os.Exit
)

// rootCmd is the base Cobra command for the auditkit CLI.
var rootCmd = &cobra.Command{
	Use:           "auditkit",
	Short:         "Audit a codebase and its live system",
	Long:          "auditkit runs static checkers and runtime testers against a project, writes a Markdown audit report and summarizes past reports.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the auditkit CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		osExit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagThreads, "threads", 0, "checker worker count (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default: .auditkit.yml in the target, then the global config)")
}

// noColor reports whether terminal styling should be disabled.
func noColor(cfgNoColor *bool) bool {
	if flagNoColor {
		return true
	}
	if cfgNoColor != nil && *cfgNoColor {
		return true
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}
