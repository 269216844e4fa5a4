package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/requirement"
)

func newRequirementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requirement",
		Aliases: []string{"req"},
		Short:   "Requirement management commands",
	}

	cmd.AddCommand(newRequirementCreateCmd())
	cmd.AddCommand(newRequirementListCmd())
	cmd.AddCommand(newRequirementShowCmd())
	cmd.AddCommand(newRequirementStatusCmd())
	cmd.AddCommand(newRequirementRemoveCmd())
	return cmd
}

func newRequirementCreateCmd() *cobra.Command {
	var opts requirement.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT requirement",
		Long:  "Creates a requirement with an auto-generated REQ-YYYY-NNNNNN code and notifies the requester.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequirementCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RequesterID, "requester", "", "requester user ID (required)")
	cmd.Flags().StringVar(&opts.PlantID, "plant", "", "originating plant ID")
	cmd.Flags().StringVar(&opts.AssignedLabID, "lab", "", "assigned lab ID")
	cmd.Flags().StringVar(&opts.SampleType, "sample-type", "", "expected sample type")
	cmd.Flags().IntVar(&opts.ExpectedQuantity, "quantity", 0, "expected number of samples")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.MarkFlagRequired("requester")
	return cmd
}

func runRequirementCreate(cmd *cobra.Command, opts requirement.CreateOpts) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.services.Requirements.Create(cmd.Context(), opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created requirement %s\n", r.Code)
	fmt.Fprintf(out, "ID: %s\n", r.ID)
	return nil
}

func newRequirementListCmd() *cobra.Command {
	var filters requirement.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequirementList(cmd, filters)
		},
	}

	cmd.Flags().StringVar(&filters.RequesterID, "requester", "", "filter by requester ID")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.PlantID, "plant", "", "filter by plant ID")
	return cmd
}

func runRequirementList(cmd *cobra.Command, filters requirement.Filters) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	reqs, err := a.services.Requirements.List(cmd.Context(), filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(reqs) == 0 {
		fmt.Fprintln(out, "No requirements found.")
		return nil
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"Code", "Status", "Requester", "Sample type", "Qty", "Created"})
	for _, r := range reqs {
		tw.AppendRow(table.Row{r.Code, r.Status, r.Requester.Name, r.SampleType, r.ExpectedQuantity, formatTime(&r.CreatedAt)})
	}
	tw.Render()
	return nil
}

func newRequirementShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|code>",
		Short: "Show a requirement and its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.services.Requirements.GetByCode(cmd.Context(), args[0])
			if err != nil {
				r, err = a.services.Requirements.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:        %s\n", r.Code)
			fmt.Fprintf(out, "ID:          %s\n", r.ID)
			fmt.Fprintf(out, "Status:      %s\n", r.Status)
			fmt.Fprintf(out, "Requester:   %s <%s>\n", r.Requester.Name, r.Requester.Email)
			fmt.Fprintf(out, "Sample type: %s\n", r.SampleType)
			fmt.Fprintf(out, "Quantity:    %d\n", r.ExpectedQuantity)
			if r.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", r.Description)
			}
			if len(r.Samples) > 0 {
				fmt.Fprintln(out)
				tw := newTable(out)
				tw.AppendHeader(table.Row{"QR code", "Type", "Status", "Received"})
				for _, s := range r.Samples {
					tw.AppendRow(table.Row{s.QRCode, s.Type, s.Status, formatTime(s.ReceivedAt)})
				}
				tw.Render()
			}
			return nil
		},
	}
}

func newRequirementStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a requirement to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.services.Requirements.ChangeStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requirement %s is now %s\n", r.Code, r.Status)
			return nil
		},
	}
}

func newRequirementRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Cancel a requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.services.Requirements.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requirement %s cancelled\n", args[0])
			return nil
		},
	}
}
