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

var errActivityLinked = errors.New("activity already linked to an instance")

type instanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

func (r *instanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.Instance, error) {
	instance := &types.Instance{}
	err := r.preload(ctx).Where("id = ?", id).First(instance).Error
	if err != nil {
		return nil, notFound(err, "instance %s", id)
	}
	return instance, nil
}

// FindByName returns the live instance with the name, or the latest terminated one
// when no live instance exists.
func (r *instanceRepository) FindByName(ctx context.Context, name string) (*types.Instance, error) {
	instance := &types.Instance{}
	err := r.preload(ctx).
		Where("name = ?", name).
		Order("CASE WHEN status = '"+string(types.InstanceStatusTerminated)+"' THEN 1 ELSE 0 END ASC").
		Order("created_at DESC").
		First(instance).Error
	if err != nil {
		return nil, notFound(err, "instance %s", name)
	}
	return instance, nil
}

func (r *instanceRepository) FindActiveByName(ctx context.Context, name string) ([]*types.Instance, error) {
	result := make([]*types.Instance, 0)
	err := r.db.WithContext(ctx).
		Where("name = ? AND status <> ?", name, types.InstanceStatusTerminated).
		Find(&result).Error
	return result, err
}

func (r *instanceRepository) FindAll(ctx context.Context, ownerID *uuid.UUID) ([]*types.Instance, error) {
	result := make([]*types.Instance, 0)
	query := r.preload(ctx)
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	err := query.Order("created_at DESC").Find(&result).Error
	return result, err
}

func (r *instanceRepository) FindNotTerminated(ctx context.Context) ([]*types.Instance, error) {
	result := make([]*types.Instance, 0)
	err := r.preload(ctx).
		Where("status <> ?", types.InstanceStatusTerminated).
		Find(&result).Error
	return result, err
}

// CompareAndSwapStatus moves the instance to "to" only if it is still in "from".
func (r *instanceRepository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to types.InstanceStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&types.Instance{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "failed to update instance %s", id)
	}
	return result.RowsAffected == 1, nil
}

// Materialize inserts the instance and links it to the activity. It reports false,
// inserting nothing, when the activity already has an instance.
func (r *instanceRepository) Materialize(ctx context.Context, instance *types.Instance, activityID uuid.UUID) (bool, error) {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	if instance.Status == "" {
		instance.Status = types.InstanceStatusDeploying
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(instance).Error; err != nil {
			return err
		}

		result := tx.Model(&types.Activity{}).
			Where("id = ? AND instance_id IS NULL", activityID).
			Update("instance_id", instance.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errActivityLinked
		}
		return nil
	})
	if errors.Is(err, errActivityLinked) {
		return false, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, types.NewValidationError("instance %s already exists on this cluster", instance.Name)
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to create instance %s", instance.Name)
	}
	return true, nil
}

func (r *instanceRepository) preload(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Package").
		Preload("Cluster").
		Preload("Owner")
}
