package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// FindActivityType prefers the type configured for the product and falls back to the
// generic one.
func (c *catalogRepository) FindActivityType(ctx context.Context, term types.ActivityTerm, productID *uuid.UUID) (*types.ActivityType, error) {
	query := func() *gorm.DB {
		return c.db.WithContext(ctx).
			Preload("Mappings", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC")
			}).
			Where("identifier = ?", term)
	}

	at := &types.ActivityType{}
	if productID != nil {
		err := query().Where("product_id = ?", *productID).First(at).Error
		if err == nil {
			return at, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	at = &types.ActivityType{}
	if err := query().Where("product_id IS NULL").First(at).Error; err != nil {
		return nil, notFound(err, "activity type %s", term)
	}
	return at, nil
}

func (c *catalogRepository) FindPackage(ctx context.Context, id uuid.UUID) (*types.Package, error) {
	pkg := &types.Package{}
	err := c.db.WithContext(ctx).Preload("Product").Where("id = ?", id).First(pkg).Error
	if err != nil {
		return nil, notFound(err, "package %s", id)
	}
	return pkg, nil
}

func (c *catalogRepository) FindPackageByCode(ctx context.Context, code string) (*types.Package, error) {
	pkg := &types.Package{}
	err := c.db.WithContext(ctx).Preload("Product").Where("package_code = ?", code).First(pkg).Error
	if err != nil {
		return nil, notFound(err, "package %s", code)
	}
	return pkg, nil
}

func (c *catalogRepository) FindRegionByCode(ctx context.Context, code string) (*types.Region, error) {
	region := &types.Region{}
	err := c.db.WithContext(ctx).Where("code = ?", code).First(region).Error
	if err != nil {
		return nil, notFound(err, "region %s", code)
	}
	return region, nil
}

func (c *catalogRepository) FindDefaultRegion(ctx context.Context) (*types.Region, error) {
	region := &types.Region{}
	err := c.db.WithContext(ctx).Order("is_default DESC").Order("code ASC").First(region).Error
	if err != nil {
		return nil, notFound(err, "default region")
	}
	return region, nil
}

func (c *catalogRepository) FindProductCluster(ctx context.Context, productID, regionID uuid.UUID) (*types.ProductCluster, error) {
	pc := &types.ProductCluster{}
	err := c.db.WithContext(ctx).
		Preload("Cluster").
		Joins("JOIN clusters ON clusters.id = product_clusters.cluster_id").
		Where("product_clusters.product_id = ? AND clusters.region_id = ?", productID, regionID).
		First(pc).Error
	if err != nil {
		return nil, notFound(err, "cluster for product %s in region %s", productID, regionID)
	}
	return pc, nil
}

func (c *catalogRepository) FindProductClusterByID(ctx context.Context, id uuid.UUID) (*types.ProductCluster, error) {
	pc := &types.ProductCluster{}
	err := c.db.WithContext(ctx).Preload("Cluster").Where("id = ?", id).First(pc).Error
	if err != nil {
		return nil, notFound(err, "product cluster %s", id)
	}
	return pc, nil
}

func (c *catalogRepository) Save(ctx context.Context, value interface{}) error {
	return c.db.WithContext(ctx).Save(value).Error
}
