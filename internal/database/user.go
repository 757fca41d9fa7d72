package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

type (
	userRepository struct {
		db *gorm.DB
	}

	salesOrderRepository struct {
		db *gorm.DB
	}
)

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) Save(ctx context.Context, user *types.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return u.db.WithContext(ctx).Save(user).Error
}

func (u *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user := &types.User{}
	if err := u.db.WithContext(ctx).Where("id = ?", id).First(user).Error; err != nil {
		return nil, notFound(err, "user %s", id)
	}
	return user, nil
}

func NewSalesOrderRepository(db *gorm.DB) SalesOrderRepository {
	return &salesOrderRepository{db: db}
}

func (s *salesOrderRepository) Save(ctx context.Context, order *types.SalesOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (s *salesOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*types.SalesOrder, error) {
	order := &types.SalesOrder{}
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Package").
		Preload("Package.Product").
		Where("id = ?", id).
		First(order).Error
	if err != nil {
		return nil, notFound(err, "sales order %s", id)
	}
	return order, nil
}

func (s *salesOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.SalesOrderStatus) error {
	return s.db.WithContext(ctx).
		Model(&types.SalesOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"order_status": status, "updated_at": time.Now()}).
		Error
}

func (s *salesOrderRepository) UpdateAppName(ctx context.Context, id uuid.UUID, appName string) error {
	return s.db.WithContext(ctx).
		Model(&types.SalesOrder{}).
		Where("id = ?", id).
		Update("app_name", appName).
		Error
}
