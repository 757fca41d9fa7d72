package database

import (
	"geohost/internal/types"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSqlite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open DB: "+driver)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Region{},
		&types.Cluster{},
		&types.Product{},
		&types.ProductCluster{},
		&types.Package{},
		&types.User{},
		&types.Company{},
		&types.ActivityType{},
		&types.ActivityTypeMapping{},
		&types.SalesOrder{},
		&types.Instance{},
		&types.Activity{},
		&types.WebhookEvent{}); err != nil {
		return errors.Wrap(err, "failed to migrate DB")
	}
	return nil
}

// notFound converts gorm's sentinel so callers only check types.ErrNotFound.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(types.ErrNotFound, format, args...)
	}
	return err
}
