package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/stats"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals and pending work",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig()
			if err != nil {
				return err
			}
			o, err := stats.GetOverview(cmd.Context(), gormDB)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"", "Total", "Pending"})
			tw.AppendRow(table.Row{"Requirements", o.Totals.Requirements, o.Pending.Requirements})
			tw.AppendRow(table.Row{"Samples", o.Totals.Samples, o.Pending.Samples})
			tw.AppendRow(table.Row{"Analyses", o.Totals.Analyses, o.Pending.Analyses})
			tw.AppendRow(table.Row{"Storage", o.Totals.Storage, "-"})
			tw.AppendRow(table.Row{"Active users", o.Totals.ActiveUsers, "-"})
			tw.Render()
			return nil
		},
	}
}
