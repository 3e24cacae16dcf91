package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"posbackend/internal/report"
)

func newReportCommand(g *globals) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the sales report for a period as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := report.ParsePeriod(period)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			r := report.Build(a.store.Orders(), p, a.clock.Now().In(a.location))
			r.Products = report.AttachRecipes(r.Products, a.store.Mappings())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		},
	}
	cmd.Flags().StringVar(&period, "period", "today", "today, week, month or all")
	return cmd
}
