package database

import (
	"context"
	"geohost/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"time"
)

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (w *webhookEventRepository) Save(ctx context.Context, event *types.WebhookEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.TriggeredAt.IsZero() {
		event.TriggeredAt = time.Now()
	}
	return w.db.WithContext(ctx).Save(event).Error
}

func (w *webhookEventRepository) AttachActivity(ctx context.Context, id uuid.UUID, activityID uuid.UUID) error {
	return w.db.WithContext(ctx).
		Model(&types.WebhookEvent{}).
		Where("id = ?", id).
		Update("activity_id", activityID).
		Error
}

func (w *webhookEventRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	return w.db.WithContext(ctx).
		Model(&types.WebhookEvent{}).
		Where("id = ?", id).
		Update("note", note).
		Error
}

func (w *webhookEventRepository) HasStatusSince(ctx context.Context, appName, source, status string, since time.Time) (bool, error) {
	var count int64
	err := w.db.WithContext(ctx).
		Model(&types.WebhookEvent{}).
		Where("app_name = ? AND source = ? AND status = ? AND triggered_at >= ?", appName, source, status, since).
		Count(&count).Error
	return count > 0, err
}

func (w *webhookEventRepository) FindOrphans(ctx context.Context, before time.Time, limit int) ([]*types.WebhookEvent, error) {
	result := make([]*types.WebhookEvent, 0)
	err := w.db.WithContext(ctx).
		Where("activity_id IS NULL AND triggered_at < ?", before).
		Order("triggered_at ASC").
		Limit(limit).
		Find(&result).Error
	return result, err
}

func (w *webhookEventRepository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return w.db.WithContext(ctx).
		Where("id IN ? AND activity_id IS NULL", ids).
		Delete(&types.WebhookEvent{}).
		Error
}
