package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/zatekoja/nearcare/internal/adapters/database"
	"github.com/zatekoja/nearcare/internal/adapters/events"
	"github.com/zatekoja/nearcare/internal/adapters/tabular"
	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/redis"
)

// eventSource identifies the importer in published reload events
const eventSource = "registry-import"

var publish bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the hospitals table with the CSV contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runImport(ctx)
	},
}

func init() {
	importCmd.Flags().BoolVar(&publish, "publish", false, "publish a registry reload event on Redis after the import")
}

func runImport(ctx context.Context) error {
	path := resolveCSVPath()
	facilities, stats, err := tabular.NewCSVSource(path).Read(ctx)
	if err != nil {
		return err
	}
	logStats(path, stats)
	if len(facilities) == 0 {
		return fmt.Errorf("%s: no importable rows", path)
	}

	client, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	store := database.NewFacilityAdapter(client, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	bar := newProgressBar(len(facilities), "Importing "+path)
	start := time.Now()
	written, err := store.ReplaceAll(ctx, facilities, func(n int) {
		if bar != nil {
			_ = bar.Set(n)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	log.Info().Int("rows", written).Dur("took", time.Since(start)).Msg("Registry imported")

	if publish {
		return publishReload(ctx, written)
	}
	return nil
}

func publishReload(ctx context.Context, count int) error {
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	bus := events.NewRedisEventBus(redisClient, providers.EventChannelRegistry)
	defer bus.Close()

	event := entities.NewRegistryEvent(entities.RegistryEventReloadRequested, eventSource, count)
	if err := bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish reload event: %w", err)
	}
	log.Info().Str("event_id", event.ID).Msg("Registry reload event published")
	return nil
}

func newProgressBar(n int, description string) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func logStats(path string, stats tabular.Stats) {
	log.Info().
		Str("path", path).
		Str("encoding", stats.Encoding).
		Int("rows", stats.Rows).
		Int("kept", stats.Kept).
		Int("dropped", stats.Dropped).
		Msg("Registry CSV read")
}
