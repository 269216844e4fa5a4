package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/analysis"
)

func newAnalysisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Analysis management commands",
	}

	cmd.AddCommand(newAnalysisCreateCmd())
	cmd.AddCommand(newAnalysisListCmd())
	cmd.AddCommand(newAnalysisStartCmd())
	cmd.AddCommand(newAnalysisCompleteCmd())
	cmd.AddCommand(newAnalysisCancelCmd())
	cmd.AddCommand(newAnalysisStatsCmd())
	return cmd
}

func newAnalysisCreateCmd() *cobra.Command {
	var opts analysis.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a PENDING analysis on a sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			an, err := a.services.Analyses.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created analysis %s\n", an.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SampleID, "sample", "", "sample ID (required)")
	cmd.Flags().StringVar(&opts.AnalysisTypeID, "type", "", "analysis type ID (required)")
	cmd.Flags().StringVar(&opts.AnalystID, "analyst", "", "analyst user ID")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.MarkFlagRequired("sample")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newAnalysisListCmd() *cobra.Command {
	var filters analysis.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.services.Analyses.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No analyses found.")
				return nil
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"ID", "Sample", "Type", "Status", "Analyst", "Started", "Ended"})
			for _, an := range list {
				analyst := "-"
				if an.Analyst != nil {
					analyst = an.Analyst.Name
				}
				tw.AppendRow(table.Row{an.ID, an.Sample.QRCode, an.AnalysisType.Name, an.Status, analyst, formatTime(an.StartedAt), formatTime(an.EndedAt)})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&filters.SampleID, "sample", "", "filter by sample ID")
	cmd.Flags().StringVar(&filters.AnalysisTypeID, "type", "", "filter by analysis type ID")
	cmd.Flags().StringVar(&filters.AnalystID, "analyst", "", "filter by analyst ID")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	return cmd
}

func newAnalysisStartCmd() *cobra.Command {
	var analyst string

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a PENDING analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			an, err := a.services.Analyses.Start(cmd.Context(), args[0], analyst)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s started at %s\n", an.ID, formatTime(an.StartedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&analyst, "analyst", "", "analyst user ID")
	return cmd
}

func newAnalysisCompleteCmd() *cobra.Command {
	var results, reportURL, notes, at string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an IN_PROGRESS analysis",
		Long:  "Records the outcome and notifies the requester. --results takes a JSON object.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analysis.CompleteOpts{ReportURL: reportURL, Notes: notes}
			if results != "" {
				if err := json.Unmarshal([]byte(results), &opts.Results); err != nil {
					return fmt.Errorf("--results: %w", err)
				}
			}
			when, err := parseAt(at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			opts.At = when

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			an, err := a.services.Analyses.Complete(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s completed at %s\n", an.ID, formatTime(an.EndedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&results, "results", "", "results as a JSON object")
	cmd.Flags().StringVar(&reportURL, "report", "", "report URL")
	cmd.Flags().StringVar(&notes, "notes", "", "notes to append")
	cmd.Flags().StringVar(&at, "at", "", "completion time (RFC 3339, default now)")
	return cmd
}

func newAnalysisCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an analysis that has not completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			an, err := a.services.Analyses.Cancel(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s cancelled\n", an.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newAnalysisStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show analysis counts by status and type",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.services.Analyses.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total: %d  Pending: %d  In progress: %d  Completed today: %d\n",
				st.Total, st.Pending, st.InProgress, st.CompletedToday)
			if len(st.ByType) > 0 {
				tw := newTable(out)
				tw.AppendHeader(table.Row{"Type", "Count"})
				for _, tc := range st.ByType {
					tw.AppendRow(table.Row{tc.Name, tc.Count})
				}
				tw.Render()
			}
			return nil
		},
	}
}
