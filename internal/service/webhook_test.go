package service

import (
	"encoding/json"
	"geohost/internal/testhelper"
	"geohost/internal/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"strings"
	"testing"
	"time"
)

func TestWebhookService_Handle_Synced(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	result, err := env.webhook("synced")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionSuccess, result.Action)
	require.NotNil(t, result.ActivityID)
	assert.Equal(t, activity.ID, *result.ActivityID)

	stored := env.reload(t, activity)
	assert.Equal(t, types.ActivityStatusSuccess, stored.Status)
	assert.Contains(t, stored.Note, `"status":"synced"`)
	assert.Equal(t, types.InstanceStatusStartingUp, env.instance(t, "acme").Status)
	assert.Empty(t, env.mailer.Messages())
}

func TestWebhookService_Handle_Running(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	result, err := env.webhook("running")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionProgress, result.Action)
	assert.Nil(t, result.ActivityID)

	assert.Equal(t, types.ActivityStatusBuildArgo, env.reload(t, activity).Status)
	assert.Equal(t, types.InstanceStatusDeploying, env.instance(t, "acme").Status)

	var event types.WebhookEvent
	require.NoError(t, env.db.Where("id = ?", result.EventID).First(&event).Error)
	assert.Equal(t, "running", event.Status)
	assert.Nil(t, event.ActivityID)
}

func TestWebhookService_Handle_Failed(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	result, err := env.webhook("failed", "message", "boom")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionError, result.Action)

	stored := env.reload(t, activity)
	assert.Equal(t, types.ActivityStatusError, stored.Status)
	assert.Equal(t, "boom", stored.Note)
	assert.Equal(t, types.InstanceStatusOffline, env.instance(t, "acme").Status)

	// a later error for the same attempt only replaces the note
	result, err = env.webhook("error")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionDuplicate, result.Action)

	stored = env.reload(t, activity)
	assert.Equal(t, types.ActivityStatusError, stored.Status)
	assert.Equal(t, defaultWebhookError, stored.Note)
}

func TestWebhookService_Handle_DuplicateSuccess(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	_, err := env.webhook("synced")
	require.NoError(t, err)
	note := env.reload(t, activity).Note

	_, err = env.webhook("synced")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	stored := env.reload(t, activity)
	assert.Equal(t, types.ActivityStatusSuccess, stored.Status)
	assert.Equal(t, note, stored.Note)
	assert.Equal(t, types.InstanceStatusStartingUp, env.instance(t, "acme").Status)
}

func TestWebhookService_Handle_SuccessAfterError(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	_, err := env.webhook("failed", "message", "boom")
	require.NoError(t, err)

	result, err := env.webhook("synced")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionDuplicate, result.Action)

	stored := env.reload(t, activity)
	assert.Equal(t, types.ActivityStatusError, stored.Status)
	assert.Contains(t, stored.Note, "synced")
	assert.Equal(t, types.InstanceStatusOffline, env.instance(t, "acme").Status)
}

func TestWebhookService_Handle_Deletion(t *testing.T) {
	env := newTestEnv(t)
	instance := testhelper.CreateInstance(t, env.db, env.catalog, "acme", types.InstanceStatusOnline)
	activity, err := env.provisioning.DeleteInstance(env.ctx, types.DeleteInstanceParams{
		InstanceID: instance.ID,
		ActorID:    env.catalog.Owner.ID,
	})
	require.NoError(t, err)

	result, err := env.webhook("synced")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionWaiting, result.Action)
	assert.Equal(t, types.ActivityStatusBuildArgo, env.reload(t, activity).Status)
	assert.Equal(t, types.InstanceStatusTerminating, testhelper.InstanceStatus(t, env.db, instance.ID))

	result, err = env.webhook("deleted")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionSuccess, result.Action)
	assert.Equal(t, types.ActivityStatusSuccess, env.reload(t, activity).Status)
	assert.Equal(t, types.InstanceStatusTerminated, testhelper.InstanceStatus(t, env.db, instance.ID))
}

func TestWebhookService_Handle_Rejected(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	t.Run("missing keys", func(t *testing.T) {
		_, err := env.webhooks.Handle(env.ctx, map[string]interface{}{"app_name": "acme"})
		require.Error(t, err)
		assert.True(t, types.IsValidationError(err))
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := env.webhook("progressing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrUnrecognizedStatus))

		var event types.WebhookEvent
		require.NoError(t, env.db.Where("status = ?", "progressing").First(&event).Error)
		assert.Contains(t, event.Note, "unrecognized status")
	})

	t.Run("unknown app", func(t *testing.T) {
		_, err := env.webhooks.Handle(env.ctx, map[string]interface{}{"app_name": "nobody", "status": "synced", "source": "argocd"})
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})

	t.Run("other source", func(t *testing.T) {
		result, err := env.webhooks.Handle(env.ctx, map[string]interface{}{"app_name": "acme", "status": "synced", "source": "flux"})
		require.NoError(t, err)
		assert.Equal(t, types.WebhookActionIgnored, result.Action)
	})

	assert.Equal(t, types.ActivityStatusBuildArgo, env.reload(t, activity).Status)

	var count int64
	require.NoError(t, env.db.Model(&types.WebhookEvent{}).Count(&count).Error)
	assert.EqualValues(t, 4, count)
}

func TestWebhookService_Handle_TitleCaseAndTenantPrefix(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	result, err := env.webhooks.Handle(env.ctx, map[string]interface{}{
		"app_name": "devops-acme",
		"Status":   "Synced",
		"Source":   "ArgoCD",
	})
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionSuccess, result.Action)
	assert.Equal(t, types.ActivityStatusSuccess, env.reload(t, activity).Status)

	var event types.WebhookEvent
	require.NoError(t, env.db.Where("id = ?", result.EventID).First(&event).Error)
	assert.Equal(t, "acme", event.AppName)
	assert.Equal(t, "synced", event.Status)
}

func TestWebhookService_ArchiveOrphans(t *testing.T) {
	env := newTestEnv(t)
	activity := env.create(t, "acme")

	old := &types.WebhookEvent{AppName: "ghost", Source: "argocd", Status: "synced", TriggeredAt: time.Now().Add(-2 * time.Hour)}
	recent := &types.WebhookEvent{AppName: "ghost", Source: "argocd", Status: "synced"}
	linked := &types.WebhookEvent{AppName: "acme", Source: "argocd", Status: "synced", TriggeredAt: time.Now().Add(-2 * time.Hour), ActivityID: &activity.ID}
	for _, event := range []*types.WebhookEvent{old, recent, linked} {
		require.NoError(t, env.eventRepository.Save(env.ctx, event))
	}

	count, err := env.webhooks.ArchiveOrphans(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	keys := env.archive.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "webhook-events/"))

	f, err := env.archive.Get(env.ctx, keys[0])
	require.NoError(t, err)
	raw, err := io.ReadAll(f.Content)
	require.NoError(t, err)

	var archived types.WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &archived))
	assert.Equal(t, old.ID, archived.ID)

	var remaining int64
	require.NoError(t, env.db.Model(&types.WebhookEvent{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)

	count, err = env.webhooks.ArchiveOrphans(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, env.archive.Keys(), 1)
}
