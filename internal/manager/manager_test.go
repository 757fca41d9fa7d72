package manager

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/eventbus"
	"geohost/internal/integrations/erpnext"
	"geohost/internal/integrations/mail"
	"geohost/internal/service"
	"geohost/internal/storage"
	"geohost/internal/testhelper"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type queueDispatcher struct{}

func (queueDispatcher) Dispatch(ctx context.Context, jobURL string, data map[string]interface{}) (string, error) {
	return "https://jenkins.test/queue/item/1/", nil
}

type discardMailer struct{}

func (discardMailer) Send(ctx context.Context, msg mail.Message) error {
	return nil
}

type staticSecrets map[string]string

func (s staticSecrets) Credentials(ctx context.Context, secretURL, appName string) (map[string]string, error) {
	return s, nil
}

type noBilling struct{}

func (noBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func newManager(t *testing.T) (Manager, *gorm.DB, *testhelper.Catalog) {
	t.Helper()
	db := testhelper.NewDB(t)
	catalog := testhelper.Seed(t, db, "http://jenkins.test")

	activityRepo := database.NewActivityRepository(db)
	instanceRepo := database.NewInstanceRepository(db)
	catalogRepo := database.NewCatalogRepository(db)
	userRepo := database.NewUserRepository(db)
	salesOrderRepo := database.NewSalesOrderRepository(db)
	eventRepo := database.NewWebhookEventRepository(db)
	validate := service.NewValidator()
	bus := eventbus.New()
	erp := erpnext.NewNoop()

	credentials := service.NewCredentialService(staticSecrets{"ADMIN_PASSWORD": "s3cret"}, discardMailer{}, service.CredentialConfig{})
	instances := service.NewInstanceService(instanceRepo, activityRepo, salesOrderRepo, credentials, noBilling{}, bus)
	activities := service.NewActivityService(activityRepo, catalogRepo, instances, queueDispatcher{}, erp, bus)
	provisioning := service.NewProvisioningService(activities, instances, activityRepo, instanceRepo, catalogRepo,
		userRepo, salesOrderRepo, validate)
	webhooks := service.NewWebhookService(service.WebhookConfig{Source: "argocd", Retention: time.Hour},
		eventRepo, instances, activities, storage.NewMemory(), validate)
	salesOrders := service.NewSalesOrderService(salesOrderRepo, userRepo, provisioning, erp, validate)

	return New(provisioning, instances, activities, webhooks, credentials, salesOrders, userRepo), db, catalog
}

func TestManager_InstanceVisibility(t *testing.T) {
	mn, db, catalog := newManager(t)
	ctx := context.Background()
	instance := testhelper.CreateInstance(t, db, catalog, "acme", types.InstanceStatusOnline)

	got, err := mn.GetInstance(ctx, catalog.Owner.ID, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	_, err = mn.GetInstance(ctx, catalog.Stranger.ID, instance.ID)
	assert.True(t, errors.Is(err, types.ErrForbidden))

	_, err = mn.GetInstance(ctx, catalog.Admin.ID, instance.ID)
	assert.NoError(t, err)

	_, err = mn.GetInstance(ctx, uuid.New(), instance.ID)
	assert.True(t, errors.Is(err, types.ErrForbidden))

	owned, err := mn.ListInstances(ctx, catalog.Owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	none, err := mn.ListInstances(ctx, catalog.Stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := mn.ListInstances(ctx, catalog.Admin.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	activities, err := mn.ListActivities(ctx, catalog.Owner.ID, instance.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)

	_, err = mn.ListActivities(ctx, catalog.Stranger.ID, instance.ID)
	assert.True(t, errors.Is(err, types.ErrForbidden))

	_, err = mn.GetActivity(ctx, catalog.Owner.ID, activities[0].ID)
	assert.NoError(t, err)
	_, err = mn.GetActivity(ctx, catalog.Stranger.ID, activities[0].ID)
	assert.True(t, errors.Is(err, types.ErrForbidden))
}

func TestManager_CreateAndDelete(t *testing.T) {
	mn, _, catalog := newManager(t)
	ctx := context.Background()

	orderID := uuid.New()
	activity, err := mn.CreateInstance(ctx, catalog.Owner.ID, types.CreateInstanceParams{
		AppName:      "acme",
		PackageID:    catalog.Package.ID,
		SalesOrderID: &orderID,
	})
	require.NoError(t, err)
	assert.Nil(t, activity.SalesOrderID)
	assert.Equal(t, types.ActivityStatusBuildArgo, activity.Status)
	require.NotNil(t, activity.InstanceID)

	_, err = mn.DeleteInstance(ctx, catalog.Owner.ID, *activity.InstanceID)
	require.Error(t, err)
	assert.Equal(t, "Instance is not ready.", err.Error())

	result, err := mn.HandleWebhook(ctx, map[string]interface{}{"app_name": "acme", "status": "synced", "source": "argocd"})
	require.NoError(t, err)
	assert.Equal(t, types.WebhookActionSuccess, result.Action)

	instance, err := mn.GetInstance(ctx, catalog.Owner.ID, *activity.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, types.InstanceStatusStartingUp, instance.Status)
}

func TestManager_Credentials(t *testing.T) {
	mn, db, catalog := newManager(t)
	ctx := context.Background()
	online := testhelper.CreateInstance(t, db, catalog, "acme", types.InstanceStatusOnline)
	deploying := testhelper.CreateInstance(t, db, catalog, "other", types.InstanceStatusDeploying)

	creds, err := mn.Credentials(ctx, catalog.Owner.ID, online.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InstanceCredentials{"USERNAME": "admin", "ADMIN_PASSWORD": "s3cret"}, creds)

	_, err = mn.Credentials(ctx, catalog.Owner.ID, deploying.ID)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = mn.Credentials(ctx, catalog.Stranger.ID, online.ID)
	assert.True(t, errors.Is(err, types.ErrForbidden))
}
