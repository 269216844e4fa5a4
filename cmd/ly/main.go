package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// settings resolves the config path and secrets from flags, LY_* environment
// variables and .env.
var settings = viper.New()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ly",
		Short: "Labyard — laboratory sample tracking",
		Long:  "Labyard tracks lab requirements, samples, analyses and storage from intake to disposal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "labyard.yaml", "path to labyard config file")
	cmd.PersistentFlags().String("jwt-secret", "", "API token signing secret (overrides config)")
	cmd.PersistentFlags().String("db-password", "", "database password (overrides config)")

	settings.SetEnvPrefix("LY")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	_ = settings.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = settings.BindPFlag("jwt-secret", cmd.PersistentFlags().Lookup("jwt-secret"))
	_ = settings.BindPFlag("db-password", cmd.PersistentFlags().Lookup("db-password"))

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRequirementCmd())
	cmd.AddCommand(newSampleCmd())
	cmd.AddCommand(newAnalysisCmd())
	cmd.AddCommand(newStorageCmd())
	cmd.AddCommand(newQRCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newTypeCmd())
	cmd.AddCommand(newPlantCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newStatsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ly %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
