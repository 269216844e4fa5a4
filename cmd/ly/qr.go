package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/qrevent"
)

func newQRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "QR scan event commands",
	}

	cmd.AddCommand(newQRRecordCmd())
	cmd.AddCommand(newQRTimelineCmd())
	cmd.AddCommand(newQRRecentCmd())
	return cmd
}

func newQRRecordCmd() *cobra.Command {
	var (
		opts     qrevent.RecordOpts
		metadata string
	)

	cmd := &cobra.Command{
		Use:   "record <qr-code> <type>",
		Short: "Record a scan of a sample's QR code",
		Long:  "Appends an event of type SCANNED, RECEIVED, MOVED, STORED, ANALYZED or DISPOSED.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.QRCode, opts.Type = args[0], args[1]
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &opts.Metadata); err != nil {
					return fmt.Errorf("--metadata: %w", err)
				}
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ev, err := a.services.QR.Record(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", ev.Type, opts.QRCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "scanning user ID (required)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "where the scan happened")
	cmd.Flags().StringVar(&metadata, "metadata", "", "extra data as a JSON object")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newQRTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <qr-code>",
		Short: "Show every event of a sample, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			smp, err := a.services.Samples.GetByQRCode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			events, err := a.services.QR.Timeline(cmd.Context(), smp.ID)
			if err != nil {
				return err
			}
			printEvents(cmd, events)
			return nil
		},
	}
}

func newQRRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the latest events across all samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			events, err := a.services.QR.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printEvents(cmd, events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", qrevent.DefaultRecent, "number of events")
	return cmd
}

func printEvents(cmd *cobra.Command, events []models.QREvent) {
	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events found.")
		return
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"When", "Sample", "Type", "Location", "User"})
	for _, ev := range events {
		tw.AppendRow(table.Row{formatTime(&ev.CreatedAt), ev.Sample.QRCode, ev.Type, ev.Location, ev.User.Name})
	}
	tw.Render()
}
