package testhelper

import (
	"context"
	"fmt"
	"geohost/internal/database"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"testing"
)

// Catalog is the seeded reference data shared by tests.
type Catalog struct {
	Region         types.Region
	Cluster        types.Cluster
	Product        types.Product
	ProductCluster types.ProductCluster
	Package        types.Package
	Owner          types.User
	Stranger       types.User
	Admin          types.User
	CreateType     types.ActivityType
	DeleteType     types.ActivityType
}

// NewDB opens an isolated in-memory sqlite database with the schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(database.DriverSqlite, dsn)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Seed loads a minimal catalog: one region with one cluster serving one product,
// and create/delete activity types pointing at jenkinsURL.
func Seed(t *testing.T, db *gorm.DB, jenkinsURL string) *Catalog {
	t.Helper()
	c := &Catalog{}
	c.Region = types.Region{ID: uuid.New(), Name: "Europe", Code: "eu", IsDefault: true}
	c.Cluster = types.Cluster{ID: uuid.New(), Code: "ktz-sta-ks-gn-01", RegionID: c.Region.ID, Domain: "sta.do.kartoza.com"}
	c.Product = types.Product{ID: uuid.New(), Name: "GeoNode", Available: true}
	c.ProductCluster = types.ProductCluster{ID: uuid.New(), ProductID: c.Product.ID, ClusterID: c.Cluster.ID, Environment: "staging"}
	c.Package = types.Package{ID: uuid.New(), Name: "GeoNode Small", ProductID: c.Product.ID, PackageCode: "dev-1", VaultURL: "VAULT/"}
	c.Owner = types.User{ID: uuid.New(), Email: "owner@example.com", FirstName: "Ada", LastName: "Lovelace"}
	c.Stranger = types.User{ID: uuid.New(), Email: "stranger@example.com", FirstName: "Eve", LastName: "Doe"}
	c.Admin = types.User{ID: uuid.New(), Email: "admin@example.com", FirstName: "Root", LastName: "Admin", IsAdmin: true}
	c.CreateType = types.ActivityType{
		ID:         uuid.New(),
		Identifier: types.ActivityCreateInstance,
		URL:        jenkinsURL + "/job/create",
		Mappings: []types.ActivityTypeMapping{
			{Position: 0, InternalKey: types.KeyAppName, ExternalKey: "subdomain"},
			{Position: 1, InternalKey: types.KeyCluster, ExternalKey: "k8s_cluster"},
			{Position: 2, InternalKey: types.KeyEnvironment, ExternalKey: "geonode_env"},
			{Position: 3, InternalKey: types.KeyPackage, ExternalKey: "geonode_size"},
		},
	}
	c.DeleteType = types.ActivityType{
		ID:         uuid.New(),
		Identifier: types.ActivityDeleteInstance,
		URL:        jenkinsURL + "/job/delete",
		Mappings: []types.ActivityTypeMapping{
			{Position: 0, InternalKey: types.KeyAppName, ExternalKey: "subdomain"},
			{Position: 1, InternalKey: types.KeyCluster, ExternalKey: "k8s_cluster"},
			{Position: 2, InternalKey: types.KeyEnvironment, ExternalKey: "geonode_env"},
		},
	}

	err := database.LoadFixtures(context.Background(), db, &database.Fixtures{
		Regions:         []types.Region{c.Region},
		Clusters:        []types.Cluster{c.Cluster},
		Products:        []types.Product{c.Product},
		ProductClusters: []types.ProductCluster{c.ProductCluster},
		Packages:        []types.Package{c.Package},
		Users:           []types.User{c.Owner, c.Stranger, c.Admin},
		ActivityTypes:   []types.ActivityType{c.CreateType, c.DeleteType},
	})
	require.NoError(t, err)
	return c
}

// CreateInstance inserts an instance directly with the given status, linked to a
// finished creation activity.
func CreateInstance(t *testing.T, db *gorm.DB, c *Catalog, name string, status types.InstanceStatus) *types.Instance {
	t.Helper()
	instance := &types.Instance{
		ID:        uuid.New(),
		Name:      name,
		PackageID: c.Package.ID,
		ClusterID: c.Cluster.ID,
		OwnerID:   c.Owner.ID,
		Status:    status,
	}
	require.NoError(t, db.Omit("Package", "Cluster", "Owner", "Company").Create(instance).Error)

	activity := &types.Activity{
		ID:             uuid.New(),
		ActivityTypeID: c.CreateType.ID,
		InstanceID:     &instance.ID,
		TriggeredByID:  c.Owner.ID,
		ClientData:     map[string]interface{}{types.KeyAppName: name},
		Status:         types.ActivityStatusSuccess,
	}
	require.NoError(t, database.NewActivityRepository(db).Create(context.Background(), activity))
	return instance
}

// ActivityStatus reads the persisted status of an activity.
func ActivityStatus(t *testing.T, db *gorm.DB, id uuid.UUID) *types.Activity {
	t.Helper()
	activity, err := database.NewActivityRepository(db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return activity
}

// InstanceStatus reads the persisted status of an instance.
func InstanceStatus(t *testing.T, db *gorm.DB, id uuid.UUID) types.InstanceStatus {
	t.Helper()
	instance, err := database.NewInstanceRepository(db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return instance.Status
}
