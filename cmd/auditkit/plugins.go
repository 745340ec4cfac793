package auditkit

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/varalys/auditkit/internal/plugins"
)

func init() {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered checkers and testers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, ts := plugins.Builtin(plugins.Options{})
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "Kind", "Category", "Read-only")
			for _, p := range plugins.Describe(cs, ts) {
				if err := table.Append([]string{p.Name, string(p.Kind), string(p.Category), strconv.FormatBool(p.ReadOnly)}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	rootCmd.AddCommand(cmd)
}
