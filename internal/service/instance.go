package service

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/eventbus"
	"geohost/internal/integrations/billing"
	"geohost/internal/misc"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	maxSwapAttempts = 5
	terminatedNote  = "Resolved when the instance was terminated."
)

type (
	InstanceService interface {
		Get(ctx context.Context, id uuid.UUID) (*types.Instance, error)
		FindByName(ctx context.Context, name string) (*types.Instance, error)
		List(ctx context.Context, ownerID *uuid.UUID) ([]*types.Instance, error)
		ListNotTerminated(ctx context.Context) ([]*types.Instance, error)
		Materialize(ctx context.Context, instance *types.Instance, activityID uuid.UUID) (bool, error)

		StartingUp(ctx context.Context, id uuid.UUID) error
		Online(ctx context.Context, id uuid.UUID) error
		Offline(ctx context.Context, id uuid.UUID) error
		Success(ctx context.Context, id uuid.UUID, activity *types.Activity) error
		Error(ctx context.Context, id uuid.UUID) error
		Terminating(ctx context.Context, id uuid.UUID) (types.InstanceStatus, bool, error)
		RevertTerminating(ctx context.Context, id uuid.UUID, previous types.InstanceStatus) error
		Terminated(ctx context.Context, id uuid.UUID) error
	}

	// guardFunc returns the status to move to, or false to leave the instance alone.
	guardFunc func(current types.InstanceStatus) (types.InstanceStatus, bool)

	instanceService struct {
		instanceRepository   database.InstanceRepository
		activityRepository   database.ActivityRepository
		salesOrderRepository database.SalesOrderRepository
		credentials          CredentialService
		billing              billing.SubscriptionCanceller
		bus                  eventbus.Bus
		locks                *misc.KeyedMutex
	}
)

func NewInstanceService(instanceRepo database.InstanceRepository, activityRepo database.ActivityRepository,
	salesOrderRepo database.SalesOrderRepository, credentials CredentialService,
	billing billing.SubscriptionCanceller, bus eventbus.Bus) InstanceService {
	return &instanceService{
		instanceRepository:   instanceRepo,
		activityRepository:   activityRepo,
		salesOrderRepository: salesOrderRepo,
		credentials:          credentials,
		billing:              billing,
		bus:                  bus,
		locks:                misc.NewKeyedMutex(),
	}
}

func (s *instanceService) Get(ctx context.Context, id uuid.UUID) (*types.Instance, error) {
	return s.instanceRepository.FindByID(ctx, id)
}

func (s *instanceService) FindByName(ctx context.Context, name string) (*types.Instance, error) {
	return s.instanceRepository.FindByName(ctx, name)
}

func (s *instanceService) List(ctx context.Context, ownerID *uuid.UUID) ([]*types.Instance, error) {
	return s.instanceRepository.FindAll(ctx, ownerID)
}

func (s *instanceService) ListNotTerminated(ctx context.Context) ([]*types.Instance, error) {
	return s.instanceRepository.FindNotTerminated(ctx)
}

func (s *instanceService) Materialize(ctx context.Context, instance *types.Instance, activityID uuid.UUID) (bool, error) {
	created, err := s.instanceRepository.Materialize(ctx, instance, activityID)
	if err != nil || !created {
		return created, err
	}
	logger.Info("instance created",
		zap.String("instance", instance.Name),
		zap.String("id", instance.ID.String()),
		zap.String("activity", activityID.String()))
	s.publish(instance, "")
	return true, nil
}

func (s *instanceService) StartingUp(ctx context.Context, id uuid.UUID) error {
	_, _, _, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		return types.InstanceStatusStartingUp, !current.IsLock()
	})
	return err
}

// Online sends the credential mail only for the STARTING_UP to ONLINE edge. The swap
// decides which caller owns that edge, so concurrent probes send a single mail.
func (s *instanceService) Online(ctx context.Context, id uuid.UUID) error {
	instance, from, changed, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		return types.InstanceStatusOnline, !current.IsLock()
	})
	if err != nil {
		return err
	}
	if changed && from == types.InstanceStatusStartingUp {
		s.credentials.Deliver(ctx, instance)
	}
	return nil
}

func (s *instanceService) Offline(ctx context.Context, id uuid.UUID) error {
	_, _, _, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		if current.IsLock() || current == types.InstanceStatusStartingUp {
			return current, false
		}
		return types.InstanceStatusOffline, true
	})
	return err
}

func (s *instanceService) Success(ctx context.Context, id uuid.UUID, activity *types.Activity) error {
	switch {
	case activity.IsCreation():
		return s.StartingUp(ctx, id)
	case activity.IsDeletion():
		return s.Terminated(ctx, id)
	}
	return nil
}

func (s *instanceService) Error(ctx context.Context, id uuid.UUID) error {
	return s.Offline(ctx, id)
}

// Terminating returns the status the instance had before and whether it moved.
func (s *instanceService) Terminating(ctx context.Context, id uuid.UUID) (types.InstanceStatus, bool, error) {
	_, from, changed, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		return types.InstanceStatusTerminating, !current.IsLock()
	})
	return from, changed, err
}

// RevertTerminating undoes Terminating when no deletion activity could be recorded.
func (s *instanceService) RevertTerminating(ctx context.Context, id uuid.UUID, previous types.InstanceStatus) error {
	_, _, _, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		return previous, current == types.InstanceStatusTerminating
	})
	return err
}

func (s *instanceService) Terminated(ctx context.Context, id uuid.UUID) error {
	instance, _, changed, err := s.transition(ctx, id, func(current types.InstanceStatus) (types.InstanceStatus, bool) {
		return types.InstanceStatusTerminated, current != types.InstanceStatusTerminated
	})
	if err != nil || !changed {
		return err
	}

	resolved, err := s.activityRepository.ResolveOpen(ctx, id, types.ActivityStatusSuccess, terminatedNote)
	if err != nil {
		logger.Error("failed to resolve open activities", zap.String("instance", instance.Name), zap.Error(err))
	} else if resolved > 0 {
		logger.Info("resolved open activities", zap.String("instance", instance.Name), zap.Int64("count", resolved))
	}

	s.cancelSubscription(ctx, instance)
	return nil
}

// cancelSubscription is best effort: failures are logged only.
func (s *instanceService) cancelSubscription(ctx context.Context, instance *types.Instance) {
	activities, err := s.activityRepository.FindByInstance(ctx, instance.ID)
	if err != nil {
		logger.Error("failed to load activities for billing", zap.String("instance", instance.Name), zap.Error(err))
		return
	}

	withOrder, found := lo.Find(activities, func(item *types.Activity) bool {
		return item.SalesOrderID != nil
	})
	if !found {
		return
	}

	order, err := s.salesOrderRepository.FindByID(ctx, *withOrder.SalesOrderID)
	if err != nil {
		logger.Error("failed to load sales order", zap.String("instance", instance.Name), zap.Error(err))
		return
	}
	if order.StripeSubscriptionID == "" {
		return
	}

	if err := s.billing.CancelSubscription(ctx, order.StripeSubscriptionID); err != nil {
		logger.Error("failed to cancel subscription",
			zap.String("instance", instance.Name),
			zap.String("sales_order", order.ID.String()),
			zap.Error(err))
		return
	}
	logger.Info("subscription cancelled", zap.String("instance", instance.Name), zap.String("sales_order", order.ID.String()))
}

// transition applies guard under the per instance lock and persists the result with a
// compare and swap on the status that was read. A lost swap re-reads and re-evaluates.
func (s *instanceService) transition(ctx context.Context, id uuid.UUID, guard guardFunc) (*types.Instance, types.InstanceStatus, bool, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		instance, err := s.instanceRepository.FindByID(ctx, id)
		if err != nil {
			return nil, "", false, err
		}

		from := instance.Status
		to, ok := guard(from)
		if !ok || to == from {
			return instance, from, false, nil
		}

		swapped, err := s.instanceRepository.CompareAndSwapStatus(ctx, id, from, to)
		if err != nil {
			return nil, "", false, err
		}
		if !swapped {
			continue
		}

		instance.Status = to
		logger.Info("instance status changed",
			zap.String("instance", instance.Name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		s.publish(instance, from)
		return instance, from, true, nil
	}
	return nil, "", false, errors.Errorf("instance %s changed concurrently %d times", id, maxSwapAttempts)
}

func (s *instanceService) publish(instance *types.Instance, from types.InstanceStatus) {
	s.bus.BroadcastWithData(instance.ID.String(), eventbus.InstanceStatus, instance.Status.String(), map[string]string{
		"id":     instance.ID.String(),
		"name":   instance.Name,
		"from":   from.String(),
		"status": instance.Status.String(),
	})
}
