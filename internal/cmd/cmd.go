package cmd

import (
	"geohost/internal/cmd/fixtures"
	"geohost/internal/cmd/instances"
	"geohost/internal/cmd/migrate"
	"geohost/internal/cmd/serve"
	"geohost/internal/config"
	"github.com/spf13/cobra"
)

func New(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geohost",
		Short: "geohost - hosted GeoNode provisioning service",
	}

	cmd.AddCommand(serve.NewServeCmd(cfg))
	cmd.AddCommand(migrate.NewMigrateCmd(cfg))
	cmd.AddCommand(fixtures.NewFixturesCmd(cfg))
	cmd.AddCommand(instances.NewInstancesCmd(cfg))
	return cmd
}
