package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/catalog"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var opts catalog.UserOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			u, err := a.services.Catalog.CreateUser(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created user %s (%s)\n", u.Email, u.Role)
			fmt.Fprintf(out, "ID: %s\n", u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Role, "role", "", "ADMIN, LAB_HEAD, LAB_TECH, WAREHOUSE or RESEARCHER (default RESEARCHER)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			users, err := a.services.Catalog.ListUsers(cmd.Context(), role)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role", "Active"})
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role, u.Active})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "filter by role")
	return cmd
}

func newTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Analysis type catalog commands",
	}

	cmd.AddCommand(newTypeCreateCmd())
	cmd.AddCommand(newTypeListCmd())
	return cmd
}

func newTypeCreateCmd() *cobra.Command {
	var opts catalog.AnalysisTypeOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an analysis type",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			at, err := a.services.Catalog.CreateAnalysisType(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created analysis type %s\nID: %s\n", at.Name, at.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "unique name (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Method, "method", "", "method")
	cmd.Flags().IntVar(&opts.EstimatedHours, "hours", 0, "estimated duration in hours")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newTypeListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis types",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			types, err := a.services.Catalog.ListAnalysisTypes(cmd.Context(), !all)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(types) == 0 {
				fmt.Fprintln(out, "No analysis types found.")
				return nil
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"ID", "Name", "Method", "Hours", "Active"})
			for _, at := range types {
				tw.AppendRow(table.Row{at.ID, at.Name, at.Method, at.EstimatedHours, at.Active})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include inactive types")
	return cmd
}

func newPlantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plant",
		Short: "Plant catalog commands",
	}

	cmd.AddCommand(newPlantCreateCmd())
	cmd.AddCommand(newPlantListCmd())
	return cmd
}

func newPlantCreateCmd() *cobra.Command {
	var opts catalog.PlantOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.services.Catalog.CreatePlant(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plant %s\nID: %s\n", p.Code, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "unique plant code (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name (required)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location")
	cmd.MarkFlagRequired("code")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newPlantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			plants, err := a.services.Catalog.ListPlants(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(plants) == 0 {
				fmt.Fprintln(out, "No plants found.")
				return nil
			}
			tw := newTable(out)
			tw.AppendHeader(table.Row{"ID", "Code", "Name", "Location", "Active"})
			for _, p := range plants {
				tw.AppendRow(table.Row{p.ID, p.Code, p.Name, p.Location, p.Active})
			}
			tw.Render()
			return nil
		},
	}
}
