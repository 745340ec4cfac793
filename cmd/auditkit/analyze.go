package auditkit

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/varalys/auditkit/internal/analyzer"
	"github.com/varalys/auditkit/internal/config"
	"github.com/varalys/auditkit/internal/types"
)

var (
	flagLimit     int
	flagCountOnly string
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Summarize the latest audit report by category",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().IntVar(&flagLimit, "limit", 0, "findings listed per category (default 5)")
	cmd.Flags().StringVar(&flagCountOnly, "count-only", "", "comma-separated categories reported as counts only (default imports)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root, _ := filepath.Abs(".")
	lcfg, gcfg, err := loadConfigs(root)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	dir := pickString("", lcfg.OutDir, gcfg.OutDir)
	if dir == "" {
		dir = "."
	}
	if len(args) == 1 {
		dir = args[0]
	}

	opts := analyzer.SummaryOptions{Limit: pickInt(flagLimit, lcfg.SummaryLimit, gcfg.SummaryLimit)}
	switch {
	case flagCountOnly != "":
		cats, err := parseCategories(flagCountOnly)
		if err != nil {
			return err
		}
		opts.CountOnly = cats
	case lcfg.CountOnly != nil:
		opts.CountOnly = lcfg.Categories()
	case gcfg.CountOnly != nil:
		opts.CountOnly = gcfg.Categories()
	}

	s, err := analyzer.AnalyzeDir(dir, opts)
	if err != nil {
		if errors.Is(err, analyzer.ErrNoReport) {
			return fmt.Errorf("%w (run 'auditkit run' first)", err)
		}
		return err
	}
	return analyzer.PrintSummary(cmd.OutOrStdout(), s, noColor(pickBoolPtr(lcfg.NoColor, gcfg.NoColor)))
}

func parseCategories(list string) ([]types.Category, error) {
	out := []types.Category{}
	for _, name := range config.SplitList(list) {
		c, ok := types.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		out = append(out, c)
	}
	return out, nil
}
