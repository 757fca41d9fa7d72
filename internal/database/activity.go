package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

var openActivityStatuses = []types.ActivityStatus{types.ActivityStatusRunning, types.ActivityStatusBuildArgo}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *types.Activity) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.TriggeredAt.IsZero() {
		activity.TriggeredAt = time.Now()
	}
	if activity.Status == "" {
		activity.Status = types.ActivityStatusRunning
	}
	if !activity.Status.IsTerminal() && activity.OpenKey == nil {
		appName := activity.AppName()
		activity.OpenKey = &appName
	}

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(activity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrapf(types.ErrActivityInProgress, "app %s", activity.AppName())
	}
	return err
}

func (r *activityRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	activity := &types.Activity{}
	err := r.preload(ctx).Where("id = ?", id).First(activity).Error
	if err != nil {
		return nil, notFound(err, "activity %s", id)
	}
	return activity, nil
}

func (r *activityRepository) FindByInstance(ctx context.Context, instanceID uuid.UUID) ([]*types.Activity, error) {
	result := make([]*types.Activity, 0)
	err := r.db.WithContext(ctx).
		Preload("ActivityType").
		Where("instance_id = ?", instanceID).
		Order("triggered_at DESC").
		Find(&result).Error
	return result, err
}

func (r *activityRepository) FindLatestForInstance(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus) (*types.Activity, error) {
	activity := &types.Activity{}
	err := r.preload(ctx).
		Where("instance_id = ? AND status = ?", instanceID, status).
		Order("triggered_at DESC").
		First(activity).Error
	if err != nil {
		return nil, notFound(err, "%s activity for instance %s", status, instanceID)
	}
	return activity, nil
}

func (r *activityRepository) FindOpenByAppName(ctx context.Context, appName string) (*types.Activity, error) {
	activity := &types.Activity{}
	err := r.preload(ctx).Where("open_key = ?", appName).First(activity).Error
	if err != nil {
		return nil, notFound(err, "open activity for %s", appName)
	}
	return activity, nil
}

func (r *activityRepository) FindStale(ctx context.Context, status types.ActivityStatus, before time.Time) ([]*types.Activity, error) {
	result := make([]*types.Activity, 0)
	err := r.preload(ctx).
		Where("status = ? AND triggered_at < ?", status, before).
		Find(&result).Error
	return result, err
}

// UpdateStatus writes the change only while the activity is not terminal. It reports
// false when another writer already finalised the activity. A SUCCESS moves the linked
// sales order to Deployed in the same transaction.
func (r *activityRepository) UpdateStatus(ctx context.Context, activity *types.Activity, update ActivityUpdate) (bool, error) {
	values := map[string]interface{}{"status": update.Status}
	if update.Note != nil {
		values["note"] = *update.Note
	}
	if update.JenkinsQueueURL != nil {
		values["jenkins_queue_url"] = *update.JenkinsQueueURL
	}
	if update.Status.IsTerminal() {
		values["open_key"] = nil
	}

	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&types.Activity{}).
			Where("id = ? AND status NOT IN ?", activity.ID, types.TerminalActivityStatuses).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		changed = true

		if update.Status == types.ActivityStatusSuccess && activity.SalesOrderID != nil {
			return tx.Model(&types.SalesOrder{}).
				Where("id = ?", *activity.SalesOrderID).
				Update("order_status", types.SalesOrderDeployed).Error
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to update activity %s", activity.ID)
	}

	if changed {
		activity.Status = update.Status
		if update.Note != nil {
			activity.Note = *update.Note
		}
		if update.JenkinsQueueURL != nil {
			activity.JenkinsQueueURL = *update.JenkinsQueueURL
		}
		if update.Status.IsTerminal() {
			activity.OpenKey = nil
		}
	}
	return changed, nil
}

func (r *activityRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.db.WithContext(ctx).
		Model(&types.Activity{}).
		Where("id = ?", id).
		Update("note", note).
		Error
}

func (r *activityRepository) ResolveOpen(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus, note string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&types.Activity{}).
		Where("instance_id = ? AND status IN ?", instanceID, openActivityStatuses).
		Updates(map[string]interface{}{
			"status":   status,
			"note":     note,
			"open_key": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *activityRepository) preload(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("ActivityType").
		Preload("ActivityType.Mappings", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Instance").
		Preload("SalesOrder").
		Preload("SalesOrder.Customer")
}
