package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/storage"
)

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Sample storage commands",
	}

	cmd.AddCommand(newStorageCreateCmd())
	cmd.AddCommand(newStorageListCmd())
	cmd.AddCommand(newStorageRequestDeletionCmd())
	cmd.AddCommand(newStorageApproveDeletionCmd())
	cmd.AddCommand(newStorageRemoveCmd())
	cmd.AddCommand(newStorageExpiringCmd())
	return cmd
}

func newStorageCreateCmd() *cobra.Command {
	var (
		opts    storage.CreateOpts
		expires string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Place a sample in storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseAt(expires)
			if err != nil {
				return fmt.Errorf("--expires: %w", err)
			}
			opts.ExpiresAt = when

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.services.Storage.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created storage record %s at %s/%s\n", st.ID, st.Location, st.Shelf)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SampleID, "sample", "", "sample ID (required)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location, e.g. Freezer A (required)")
	cmd.Flags().StringVar(&opts.Shelf, "shelf", "", "shelf (required)")
	cmd.Flags().StringVar(&opts.Box, "box", "", "box")
	cmd.Flags().StringVar(&opts.Position, "position", "", "position in box")
	cmd.Flags().StringVar(&expires, "expires", "", "expiry time (RFC 3339)")
	cmd.MarkFlagRequired("sample")
	return cmd
}

func newStorageListCmd() *cobra.Command {
	var filters storage.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List storage records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.services.Storage.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			printStorage(cmd, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Shelf, "shelf", "", "filter by shelf")
	cmd.Flags().StringVar(&filters.Location, "location", "", "filter by location fragment")
	cmd.Flags().BoolVar(&filters.PendingDeletion, "pending-deletion", false, "only records awaiting deletion approval")
	return cmd
}

func printStorage(cmd *cobra.Command, list []models.Storage) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No storage records found.")
		return
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"ID", "Sample", "Location", "Shelf", "Box", "Status", "Expires", "Deletion"})
	for _, st := range list {
		deletion := "-"
		switch {
		case st.DeletionApproved:
			deletion = "approved"
		case st.DeletionRequested:
			deletion = "requested"
		}
		tw.AppendRow(table.Row{st.ID, st.Sample.QRCode, st.Location, st.Shelf, st.Box, st.Status, formatTime(st.ExpiresAt), deletion})
	}
	tw.Render()
}

func newStorageRequestDeletionCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "request-deletion <id>",
		Short: "Request deletion of a storage record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.services.Storage.RequestDeletion(cmd.Context(), args[0], by); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deletion requested for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "requesting user ID (required)")
	cmd.MarkFlagRequired("by")
	return cmd
}

func newStorageApproveDeletionCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "approve-deletion <id>",
		Short: "Approve a requested deletion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.services.Storage.ApproveDeletion(cmd.Context(), args[0], by); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deletion approved for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "approving user ID (required)")
	cmd.MarkFlagRequired("by")
	return cmd
}

func newStorageRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a storage record whose deletion was approved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.Storage.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Storage record %s removed\n", args[0])
			return nil
		},
	}
}

func newStorageExpiringCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List occupied storage expiring soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.services.Storage.ExpiringSoon(cmd.Context(), days)
			if err != nil {
				return err
			}
			printStorage(cmd, list)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", storage.DefaultExpiringDays, "lookahead in days")
	return cmd
}
