package migrate

import (
	"geohost/internal/cmdutil"
	"geohost/internal/config"
	"geohost/internal/database"
	"github.com/spf13/cobra"
)

func NewMigrateCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdutil.StartLoading("Migrating...")
			db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
			cmdutil.StopLoading()
			if err != nil {
				return err
			}

			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			cmdutil.PrintS("Schema is up to date (" + cfg.DatabaseDriver + ")")
			return nil
		},
	}
}
