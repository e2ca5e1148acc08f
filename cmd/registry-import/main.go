// Command registry-import loads the facility registry CSV into PostgreSQL.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	"github.com/zatekoja/nearcare/pkg/config"
	"github.com/zatekoja/nearcare/pkg/secrets"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "registry-import",
	Short: "Manage the nearcare facility registry",
	Long: `
registry-import reads the national hospital CSV (UTF-8 or CP949) and replaces the
hospitals table used by the API when REGISTRY_SOURCE=postgres.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := secrets.ApplyVaultSecrets(cmd.Context(), secrets.LoadVaultConfigFromEnv()); err != nil {
			return err
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		observability.InitLogger("registry-import", cfg.Log.Env, cfg.Log.Level)
		return nil
	},
}

var csvPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&csvPath, "csv", "", "registry CSV path (default REGISTRY_CSV_PATH)")
	rootCmd.AddCommand(importCmd, validateCmd)
}

func resolveCSVPath() string {
	if csvPath != "" {
		return csvPath
	}
	return cfg.Registry.CSVPath
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("registry-import failed")
		os.Exit(1)
	}
}
