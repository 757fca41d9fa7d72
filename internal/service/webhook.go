package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"geohost/internal/database"
	"geohost/internal/misc"
	"geohost/internal/storage"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"io"
	"time"
)

const (
	defaultWebhookError = "Error from ArgoCD"
	orphanBatchSize     = 500
)

type (
	WebhookService interface {
		// Handle records the callback and reconciles the matching activity. Every
		// callback is stored, including the ones that fail.
		Handle(ctx context.Context, data map[string]interface{}) (*types.WebhookResult, error)
		// ArchiveOrphans moves callbacks that never matched an activity and are older
		// than the retention to the archive, then deletes them.
		ArchiveOrphans(ctx context.Context) (int, error)
	}

	WebhookConfig struct {
		Source         string
		TenantPrefixes []string
		Retention      time.Duration
	}

	webhookService struct {
		cfg             WebhookConfig
		eventRepository database.WebhookEventRepository
		instanceService InstanceService
		activityService ActivityService
		archive         storage.Storage
		validate        *validator.Validate
	}
)

func NewWebhookService(cfg WebhookConfig, eventRepo database.WebhookEventRepository, instanceService InstanceService,
	activityService ActivityService, archive storage.Storage, validate *validator.Validate) WebhookService {
	return &webhookService{
		cfg:             cfg,
		eventRepository: eventRepo,
		instanceService: instanceService,
		activityService: activityService,
		archive:         archive,
		validate:        validate,
	}
}

func (w *webhookService) Handle(ctx context.Context, data map[string]interface{}) (*types.WebhookResult, error) {
	payload := types.ParseWebhookPayload(data)
	event := &types.WebhookEvent{
		Data:    data,
		AppName: misc.StripTenantPrefix(payload.AppName, w.cfg.TenantPrefixes),
		Source:  payload.Source,
		Status:  payload.Status,
	}
	if err := w.eventRepository.Save(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to store webhook event")
	}

	result := &types.WebhookResult{EventID: event.ID}
	note, err := w.reconcile(ctx, event, payload, result)
	if err != nil {
		note = err.Error()
		logger.Warn("webhook not reconciled",
			zap.String("event", event.ID.String()),
			zap.String("app_name", payload.AppName),
			zap.String("status", payload.Status),
			zap.Error(err))
	}
	if note != "" {
		if noteErr := w.eventRepository.UpdateNote(ctx, event.ID, note); noteErr != nil {
			logger.Error("failed to store webhook note", zap.String("event", event.ID.String()), zap.Error(noteErr))
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reconcile returns an optional note for the event.
func (w *webhookService) reconcile(ctx context.Context, event *types.WebhookEvent, payload types.WebhookPayload, result *types.WebhookResult) (string, error) {
	if err := validateStruct(w.validate, payload); err != nil {
		return "", err
	}

	if payload.Source != w.cfg.Source {
		result.Action = types.WebhookActionIgnored
		return fmt.Sprintf("Ignored: source %s.", payload.Source), nil
	}
	if payload.Status == types.WebhookStatusRunning {
		result.Action = types.WebhookActionProgress
		return "", nil
	}

	instance, err := w.instanceService.FindByName(ctx, event.AppName)
	if err != nil {
		return "", err
	}

	activity, err := w.findActivity(ctx, instance)
	if err != nil {
		return "", err
	}
	result.ActivityID = &activity.ID
	if err := w.eventRepository.AttachActivity(ctx, event.ID, activity.ID); err != nil {
		return "", errors.Wrap(err, "failed to link webhook event")
	}

	if lo.Contains(types.WebhookErrorStatuses, payload.Status) {
		note := payload.Message
		if note == "" {
			note = defaultWebhookError
		}
		return "", w.finish(ctx, activity, types.ActivityStatusError, note, types.WebhookActionError, result)
	}

	if !lo.Contains(types.WebhookSuccessStatuses, payload.Status) {
		return "", errors.Wrapf(types.ErrUnrecognizedStatus, "status %q", payload.Status)
	}

	if activity.IsDeletion() && payload.Status != types.WebhookStatusDeleted {
		result.Action = types.WebhookActionWaiting
		return fmt.Sprintf("Waiting for %s before finishing the deletion.", types.WebhookStatusDeleted), nil
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		return "", err
	}
	return "", w.finish(ctx, activity, types.ActivityStatusSuccess, string(raw), types.WebhookActionSuccess, result)
}

// findActivity picks the latest BUILD_ARGO activity of the instance, falling back to
// the latest ERROR one so a late callback for a failed attempt still resolves.
func (w *webhookService) findActivity(ctx context.Context, instance *types.Instance) (*types.Activity, error) {
	activity, err := w.activityService.LatestForInstance(ctx, instance.ID, types.ActivityStatusBuildArgo)
	if err == nil {
		return activity, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	activity, err = w.activityService.LatestForInstance(ctx, instance.ID, types.ActivityStatusError)
	if err != nil {
		return nil, errors.Wrapf(err, "no activity waiting for %s", instance.Name)
	}
	return activity, nil
}

// finish moves the activity to status. An activity that is already terminal keeps its
// status and only takes the note.
func (w *webhookService) finish(ctx context.Context, activity *types.Activity, status types.ActivityStatus,
	note string, action string, result *types.WebhookResult) error {
	changed, err := w.activityService.UpdateStatus(ctx, activity, status, note)
	if err != nil {
		return err
	}
	if changed {
		result.Action = action
		return nil
	}

	result.Action = types.WebhookActionDuplicate
	return w.activityService.UpdateNote(ctx, activity, note)
}

func (w *webhookService) ArchiveOrphans(ctx context.Context) (int, error) {
	orphans, err := w.eventRepository.FindOrphans(ctx, time.Now().Add(-w.cfg.Retention), orphanBatchSize)
	if err != nil || len(orphans) == 0 {
		return 0, err
	}

	buf := bytes.Buffer{}
	encoder := json.NewEncoder(&buf)
	for _, event := range orphans {
		if err := encoder.Encode(event); err != nil {
			return 0, err
		}
	}

	suffix, err := misc.DefaultRandomIdGenerator.Generate(8)
	if err != nil {
		return 0, err
	}
	location := fmt.Sprintf("webhook-events/%s-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"), suffix)
	size := int64(buf.Len())
	err = w.archive.Save(ctx, location, types.File{
		Content: io.NopCloser(&buf),
		Stat:    types.FileStat{Size: size, Name: location, ContentType: "application/x-ndjson"},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to archive webhook events")
	}

	ids := lo.Map(orphans, func(item *types.WebhookEvent, index int) uuid.UUID {
		return item.ID
	})
	if err := w.eventRepository.Delete(ctx, ids); err != nil {
		return 0, err
	}
	logger.Info("archived webhook events", zap.Int("count", len(ids)), zap.String("location", location))
	return len(ids), nil
}
