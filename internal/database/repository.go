package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"time"
)

type (
	// ActivityUpdate lists the columns written together with a status change.
	ActivityUpdate struct {
		Status          types.ActivityStatus
		Note            *string
		JenkinsQueueURL *string
	}
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *types.Activity) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.Activity, error)
	FindByInstance(ctx context.Context, instanceID uuid.UUID) ([]*types.Activity, error)
	FindLatestForInstance(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus) (*types.Activity, error)
	FindOpenByAppName(ctx context.Context, appName string) (*types.Activity, error)
	FindStale(ctx context.Context, status types.ActivityStatus, before time.Time) ([]*types.Activity, error)
	UpdateStatus(ctx context.Context, activity *types.Activity, update ActivityUpdate) (bool, error)
	UpdateNote(ctx context.Context, id uuid.UUID, note string) error
	ResolveOpen(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus, note string) (int64, error)
}

type InstanceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*types.Instance, error)
	FindByName(ctx context.Context, name string) (*types.Instance, error)
	FindActiveByName(ctx context.Context, name string) ([]*types.Instance, error)
	FindAll(ctx context.Context, ownerID *uuid.UUID) ([]*types.Instance, error)
	FindNotTerminated(ctx context.Context) ([]*types.Instance, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to types.InstanceStatus) (bool, error)
	Materialize(ctx context.Context, instance *types.Instance, activityID uuid.UUID) (bool, error)
}

type WebhookEventRepository interface {
	Save(ctx context.Context, event *types.WebhookEvent) error
	AttachActivity(ctx context.Context, id uuid.UUID, activityID uuid.UUID) error
	UpdateNote(ctx context.Context, id uuid.UUID, note string) error
	HasStatusSince(ctx context.Context, appName, source, status string, since time.Time) (bool, error)
	FindOrphans(ctx context.Context, before time.Time, limit int) ([]*types.WebhookEvent, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
}

type CatalogRepository interface {
	FindActivityType(ctx context.Context, term types.ActivityTerm, productID *uuid.UUID) (*types.ActivityType, error)
	FindPackage(ctx context.Context, id uuid.UUID) (*types.Package, error)
	FindPackageByCode(ctx context.Context, code string) (*types.Package, error)
	FindRegionByCode(ctx context.Context, code string) (*types.Region, error)
	FindDefaultRegion(ctx context.Context) (*types.Region, error)
	FindProductCluster(ctx context.Context, productID, regionID uuid.UUID) (*types.ProductCluster, error)
	FindProductClusterByID(ctx context.Context, id uuid.UUID) (*types.ProductCluster, error)
	Save(ctx context.Context, value interface{}) error
}

type UserRepository interface {
	Save(ctx context.Context, user *types.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.User, error)
}

type SalesOrderRepository interface {
	Save(ctx context.Context, order *types.SalesOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*types.SalesOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status types.SalesOrderStatus) error
	UpdateAppName(ctx context.Context, id uuid.UUID, appName string) error
}
