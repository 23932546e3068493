package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joeblew999/pdffs/pkg/pipeline"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the available operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range a.Registry.Names() {
			p, _ := a.Registry.Get(name)
			fmt.Fprintf(tw, "%s\t%s\n", name, pipeline.Describe(p))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)
}
