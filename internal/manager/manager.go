package manager

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/service"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	// Manager is the entry point of the HTTP and CLI surfaces. It resolves the actor,
	// enforces ownership and delegates to the services.
	Manager interface {
		CreateInstance(ctx context.Context, actorID uuid.UUID, params types.CreateInstanceParams) (*types.Activity, error)
		DeleteInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Activity, error)
		GetInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Instance, error)
		ListInstances(ctx context.Context, actorID uuid.UUID) ([]*types.Instance, error)
		ListActivities(ctx context.Context, actorID, instanceID uuid.UUID) ([]*types.Activity, error)
		GetActivity(ctx context.Context, actorID, activityID uuid.UUID) (*types.Activity, error)
		Credentials(ctx context.Context, actorID, instanceID uuid.UUID) (types.InstanceCredentials, error)
		HandleWebhook(ctx context.Context, data map[string]interface{}) (*types.WebhookResult, error)
		ConfigureSalesOrder(ctx context.Context, actorID, salesOrderID uuid.UUID, params types.ConfigureSalesOrderParams) (*types.Activity, error)
	}
)

type manager struct {
	provisioning   service.ProvisioningService
	instances      service.InstanceService
	activities     service.ActivityService
	webhooks       service.WebhookService
	credentials    service.CredentialService
	salesOrders    service.SalesOrderService
	userRepository database.UserRepository
}

func New(
	provisioning service.ProvisioningService,
	instances service.InstanceService,
	activities service.ActivityService,
	webhooks service.WebhookService,
	credentials service.CredentialService,
	salesOrders service.SalesOrderService,
	userRepository database.UserRepository) Manager {
	return &manager{
		provisioning:   provisioning,
		instances:      instances,
		activities:     activities,
		webhooks:       webhooks,
		credentials:    credentials,
		salesOrders:    salesOrders,
		userRepository: userRepository,
	}
}

func (m *manager) CreateInstance(ctx context.Context, actorID uuid.UUID, params types.CreateInstanceParams) (*types.Activity, error) {
	// sales orders are attached by the order flow only
	params.SalesOrderID = nil
	return m.provisioning.CreateInstance(ctx, actorID, params)
}

func (m *manager) DeleteInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Activity, error) {
	return m.provisioning.DeleteInstance(ctx, types.DeleteInstanceParams{
		InstanceID: instanceID,
		ActorID:    actorID,
	})
}

func (m *manager) GetInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Instance, error) {
	actor, err := m.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return m.ownedInstance(ctx, actor, instanceID)
}

func (m *manager) ListInstances(ctx context.Context, actorID uuid.UUID) ([]*types.Instance, error) {
	actor, err := m.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		return m.instances.List(ctx, nil)
	}
	return m.instances.List(ctx, &actor.ID)
}

func (m *manager) ListActivities(ctx context.Context, actorID, instanceID uuid.UUID) ([]*types.Activity, error) {
	if _, err := m.GetInstance(ctx, actorID, instanceID); err != nil {
		return nil, err
	}
	return m.activities.ListForInstance(ctx, instanceID)
}

func (m *manager) GetActivity(ctx context.Context, actorID, activityID uuid.UUID) (*types.Activity, error) {
	actor, err := m.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	activity, err := m.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin || activity.TriggeredByID == actor.ID {
		return activity, nil
	}
	if activity.InstanceID != nil {
		if _, err := m.ownedInstance(ctx, actor, *activity.InstanceID); err == nil {
			return activity, nil
		}
	}
	return nil, errors.Wrap(types.ErrForbidden, "You are not allowed to view this activity.")
}

func (m *manager) Credentials(ctx context.Context, actorID, instanceID uuid.UUID) (types.InstanceCredentials, error) {
	instance, err := m.GetInstance(ctx, actorID, instanceID)
	if err != nil {
		return nil, err
	}
	if !instance.IsReady() {
		return nil, types.NewValidationError("Instance is not ready.")
	}
	return m.credentials.Credentials(ctx, instance)
}

func (m *manager) HandleWebhook(ctx context.Context, data map[string]interface{}) (*types.WebhookResult, error) {
	return m.webhooks.Handle(ctx, data)
}

func (m *manager) ConfigureSalesOrder(ctx context.Context, actorID, salesOrderID uuid.UUID, params types.ConfigureSalesOrderParams) (*types.Activity, error) {
	return m.salesOrders.Configure(ctx, salesOrderID, actorID, params)
}

func (m *manager) actor(ctx context.Context, actorID uuid.UUID) (*types.User, error) {
	user, err := m.userRepository.FindByID(ctx, actorID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, errors.Wrap(types.ErrForbidden, "unknown user")
	}
	return user, err
}

func (m *manager) ownedInstance(ctx context.Context, actor *types.User, instanceID uuid.UUID) (*types.Instance, error) {
	instance, err := m.instances.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && instance.OwnerID != actor.ID {
		return nil, errors.Wrap(types.ErrForbidden, "You are not allowed to view this instance.")
	}
	return instance, nil
}
