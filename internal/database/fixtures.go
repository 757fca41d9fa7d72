package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"io"
)

// Fixtures is the operator maintained catalog and activity type configuration.
type Fixtures struct {
	Regions         []types.Region         `yaml:"regions"`
	Clusters        []types.Cluster        `yaml:"clusters"`
	Products        []types.Product        `yaml:"products"`
	ProductClusters []types.ProductCluster `yaml:"product_clusters"`
	Packages        []types.Package        `yaml:"packages"`
	Users           []types.User           `yaml:"users"`
	ActivityTypes   []types.ActivityType   `yaml:"activity_types"`
}

func ParseFixtures(r io.Reader) (*Fixtures, error) {
	f := &Fixtures{}
	if err := yaml.NewDecoder(r).Decode(f); err != nil {
		return nil, errors.Wrap(err, "invalid fixtures file")
	}
	return f, nil
}

// LoadFixtures upserts every entry by primary key. Activity type mappings are
// replaced as a whole so the configured order is kept.
func LoadFixtures(ctx context.Context, db *gorm.DB, f *Fixtures) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range f.Regions {
			if err := tx.Save(&f.Regions[i]).Error; err != nil {
				return errors.Wrapf(err, "region %s", f.Regions[i].Code)
			}
		}
		for i := range f.Clusters {
			if err := tx.Omit(clause.Associations).Save(&f.Clusters[i]).Error; err != nil {
				return errors.Wrapf(err, "cluster %s", f.Clusters[i].Code)
			}
		}
		for i := range f.Products {
			if err := tx.Save(&f.Products[i]).Error; err != nil {
				return errors.Wrapf(err, "product %s", f.Products[i].Name)
			}
		}
		for i := range f.ProductClusters {
			if err := tx.Omit(clause.Associations).Save(&f.ProductClusters[i]).Error; err != nil {
				return errors.Wrapf(err, "product cluster %s", f.ProductClusters[i].ID)
			}
		}
		for i := range f.Packages {
			if err := tx.Omit(clause.Associations).Save(&f.Packages[i]).Error; err != nil {
				return errors.Wrapf(err, "package %s", f.Packages[i].PackageCode)
			}
		}
		for i := range f.Users {
			if err := tx.Save(&f.Users[i]).Error; err != nil {
				return errors.Wrapf(err, "user %s", f.Users[i].Email)
			}
		}
		for i := range f.ActivityTypes {
			if err := saveActivityType(tx, &f.ActivityTypes[i]); err != nil {
				return errors.Wrapf(err, "activity type %s", f.ActivityTypes[i].Identifier)
			}
		}
		return nil
	})
}

func saveActivityType(tx *gorm.DB, at *types.ActivityType) error {
	if at.ID == uuid.Nil {
		at.ID = uuid.New()
	}
	if err := tx.Omit(clause.Associations).Save(at).Error; err != nil {
		return err
	}
	if err := tx.Where("activity_type_id = ?", at.ID).Delete(&types.ActivityTypeMapping{}).Error; err != nil {
		return err
	}
	for i := range at.Mappings {
		m := &at.Mappings[i]
		m.ID = uuid.New()
		m.ActivityTypeID = at.ID
		if m.Position == 0 {
			m.Position = i
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
	}
	return nil
}
