package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Spok95/fbo-sync/internal/config"
	"github.com/Spok95/fbo-sync/internal/infra/db"
	"github.com/Spok95/fbo-sync/internal/infra/logger"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции журнала sync_outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn is not configured")
			}
			log := logger.New(cfg.App.Env)
			if err := db.Migrate(cfg.Postgres.DSN); err != nil {
				log.Error("migrations failed", "err", err)
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
