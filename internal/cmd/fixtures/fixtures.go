package fixtures

import (
	"context"
	"fmt"
	"geohost/internal/cmdutil"
	"geohost/internal/config"
	"geohost/internal/database"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"os"
	"time"
)

func NewFixturesCmd(cfg config.Config) *cobra.Command {
	var (
		file string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "load-fixtures",
		Short: "Load the catalog, users and activity types from a YAML file",
		Long:  "Upsert regions, clusters, products, packages, users and activity types. Existing entries with the same id are overwritten.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !cmdutil.Confirm(fmt.Sprintf("Load %s into %s", file, cfg.DatabaseDSN)) {
				cmdutil.Print("aborted")
				return nil
			}

			db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			summary, err := Load(ctx, db, file)
			if err != nil {
				return err
			}
			cmdutil.PrintS(summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "fixtures.yaml", "path to the fixtures file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// Load reads the fixtures file at path into db and returns a short summary.
func Load(ctx context.Context, db *gorm.DB, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to open fixtures file")
	}
	defer f.Close()

	fixtures, err := database.ParseFixtures(f)
	if err != nil {
		return "", err
	}
	if err := database.LoadFixtures(ctx, db, fixtures); err != nil {
		return "", err
	}
	return fmt.Sprintf("loaded %d regions, %d clusters, %d products, %d packages, %d users, %d activity types",
		len(fixtures.Regions), len(fixtures.Clusters), len(fixtures.Products),
		len(fixtures.Packages), len(fixtures.Users), len(fixtures.ActivityTypes)), nil
}
