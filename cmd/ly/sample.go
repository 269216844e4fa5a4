package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/sample"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample management commands",
	}

	cmd.AddCommand(newSampleCreateCmd())
	cmd.AddCommand(newSampleListCmd())
	cmd.AddCommand(newSampleShowCmd())
	cmd.AddCommand(newSampleReceiveCmd())
	cmd.AddCommand(newSampleStatusCmd())
	cmd.AddCommand(newSampleDeriveCmd())
	cmd.AddCommand(newSampleRemoveCmd())
	cmd.AddCommand(newSampleQRCmd())
	return cmd
}

func newSampleCreateCmd() *cobra.Command {
	var opts sample.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an EXPECTED sample under a requirement",
		Long:  "Registers a sample with an auto-generated QR-YYYY-NNNNNN code.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.services.Samples.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created sample %s\n", s.QRCode)
			fmt.Fprintf(out, "ID: %s\n", s.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.RequirementID, "requirement", "", "requirement ID (required)")
	cmd.Flags().StringVar(&opts.ParentSampleID, "parent", "", "parent sample ID")
	cmd.Flags().StringVar(&opts.Type, "type", "", "sample type (required)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "physical format")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "", "quantity with unit")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&opts.IsCounterSample, "counter-sample", false, "mark as a counter-sample")
	cmd.MarkFlagRequired("requirement")
	cmd.MarkFlagRequired("type")
	return cmd
}

func newSampleListCmd() *cobra.Command {
	var filters sample.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSampleList(cmd, filters)
		},
	}

	cmd.Flags().StringVar(&filters.RequirementID, "requirement", "", "filter by requirement ID")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.QRCode, "qr", "", "filter by QR code fragment")
	return cmd
}

func runSampleList(cmd *cobra.Command, filters sample.Filters) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	samples, err := a.services.Samples.List(cmd.Context(), filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(samples) == 0 {
		fmt.Fprintln(out, "No samples found.")
		return nil
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"QR code", "Requirement", "Type", "Status", "Received", "Counter"})
	for _, s := range samples {
		tw.AppendRow(table.Row{s.QRCode, s.Requirement.Code, s.Type, s.Status, formatTime(s.ReceivedAt), s.IsCounterSample})
	}
	tw.Render()
	return nil
}

func newSampleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|qr-code>",
		Short: "Show a sample with its events and analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			id := args[0]
			if s, err := a.services.Samples.GetByQRCode(cmd.Context(), id); err == nil {
				id = s.ID
			}
			h, err := a.services.Samples.History(cmd.Context(), id)
			if err != nil {
				return err
			}

			s := h.Sample
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "QR code:     %s\n", s.QRCode)
			fmt.Fprintf(out, "ID:          %s\n", s.ID)
			fmt.Fprintf(out, "Status:      %s\n", s.Status)
			fmt.Fprintf(out, "Type:        %s\n", s.Type)
			fmt.Fprintf(out, "Parent:      %s\n", deref(s.ParentSampleID))
			fmt.Fprintf(out, "Received:    %s\n", formatTime(s.ReceivedAt))
			fmt.Fprintf(out, "Analysis:    %s → %s\n", formatTime(s.AnalysisStartedAt), formatTime(s.AnalysisEndedAt))
			if s.Notes != "" {
				fmt.Fprintf(out, "Notes:\n%s\n", s.Notes)
			}

			if len(h.Analyses) > 0 {
				fmt.Fprintln(out, "\nAnalyses:")
				tw := newTable(out)
				tw.AppendHeader(table.Row{"Type", "Status", "Started", "Ended"})
				for _, an := range h.Analyses {
					tw.AppendRow(table.Row{an.AnalysisType.Name, an.Status, formatTime(an.StartedAt), formatTime(an.EndedAt)})
				}
				tw.Render()
			}
			if len(h.Events) > 0 {
				fmt.Fprintln(out, "\nEvents:")
				tw := newTable(out)
				tw.AppendHeader(table.Row{"When", "Type", "Location"})
				for _, ev := range h.Events {
					tw.AppendRow(table.Row{formatTime(&ev.CreatedAt), ev.Type, ev.Location})
				}
				tw.Render()
			}
			return nil
		},
	}
}

func newSampleReceiveCmd() *cobra.Command {
	var note, at string

	cmd := &cobra.Command{
		Use:   "receive <id>",
		Short: "Mark an EXPECTED sample as RECEIVED",
		Long:  "Records reception, optionally appending a note, and notifies the requester.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseAt(at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.services.Samples.Receive(cmd.Context(), args[0], sample.ReceiveOpts{Note: note, At: when})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample %s received at %s\n", s.QRCode, formatTime(s.ReceivedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "reception note")
	cmd.Flags().StringVar(&at, "at", "", "reception time (RFC 3339, default now)")
	return cmd
}

func newSampleStatusCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a sample to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseAt(at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.services.Samples.ChangeStatus(cmd.Context(), args[0], args[1], when)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample %s is now %s\n", s.QRCode, s.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "time to stamp (RFC 3339, default now)")
	return cmd
}

func newSampleDeriveCmd() *cobra.Command {
	var opts sample.DerivativeOpts

	cmd := &cobra.Command{
		Use:   "derive <parent-id>",
		Short: "Create a derived sample under the parent's requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.services.Samples.CreateDerivative(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created derived sample %s\n", s.QRCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "sample type (default: parent's)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "physical format (default: parent's)")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "", "quantity with unit")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&opts.IsCounterSample, "counter-sample", false, "mark as a counter-sample")
	return cmd
}

func newSampleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Mark a sample DELETED",
		Long:  "Fails while the sample has analyses that are not COMPLETED.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.Samples.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample %s deleted\n", args[0])
			return nil
		},
	}
}

func newSampleQRCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "qr <id|qr-code>",
		Short: "Render a sample's scan code as a printable label",
		Long: `Writes the label as png or svg to --output (default <qr-code>.<format>).
The dataurl format is printed instead of written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			id := args[0]
			if s, err := a.services.Samples.GetByQRCode(cmd.Context(), id); err == nil {
				id = s.ID
			}
			img, err := a.services.Samples.QRImage(cmd.Context(), id, format)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if img.Format == sample.FormatDataURL && output == "" {
				fmt.Fprintln(out, string(img.Data))
				return nil
			}
			if output == "" {
				output = img.Code + "." + img.Format
			}
			if err := os.WriteFile(output, img.Data, 0644); err != nil {
				return fmt.Errorf("write label: %w", err)
			}
			fmt.Fprintf(out, "Wrote %s label for %s to %s\n", img.Format, img.Code, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", sample.FormatPNG, "png, svg or dataurl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	return cmd
}
