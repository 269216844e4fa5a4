package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBSeedCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create, migrate and seed the labyard database",
		Long: `Creates the database (MySQL only; PostgreSQL databases must exist and
SQLite files are created on connect), migrates all tables and seeds the
analysis types and plants listed in the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd)
		},
	}
}

func runDBInit(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded config from %s\n", settings.GetString("config"))

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.Seed(gormDB, cfg.Seed); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d analysis types and %d plants\n", len(cfg.Seed.AnalysisTypes), len(cfg.Seed.Plants))

	fmt.Fprintln(out, "\nLabyard database initialized successfully.")
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate all tables to the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig()
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
			return nil
		},
	}
}

func newDBSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the analysis types and plants listed in the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig()
			if err != nil {
				return err
			}
			if err := db.Seed(gormDB, cfg.Seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d analysis types and %d plants\n", len(cfg.Seed.AnalysisTypes), len(cfg.Seed.Plants))
			return nil
		},
	}
}
