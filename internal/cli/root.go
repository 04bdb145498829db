package cli

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

// RootOptions — общие флаги всех команд.
type RootOptions struct {
	ConfigPath string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fbosync",
		Short: "Синхронизация заявок FBO Ozon с документами МойСклад",
		Long: `fbosync переносит заявки на поставку FBO из Ozon в МойСклад:
заказ покупателя, перемещение на склад FBO и, когда товар уже в пути, отгрузку.
Повторный запуск безопасен: документы ищутся по externalCode OZON_FBO:<номер заявки>.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "path to YAML config (empty: env only)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewOutcomesCommand(opts))

	return cmd
}
