package service

import (
	"context"
	"fmt"
	"geohost/internal/database"
	"geohost/internal/eventbus"
	"geohost/internal/integrations/erpnext"
	"geohost/internal/integrations/jenkins"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
)

type (
	ActivityService interface {
		// Start persists a RUNNING activity and runs it. Only persistence errors are
		// returned; everything that goes wrong afterwards ends up in the activity note.
		Start(ctx context.Context, params StartActivityParams) (*types.Activity, error)
		Run(ctx context.Context, activity *types.Activity)
		UpdateStatus(ctx context.Context, activity *types.Activity, status types.ActivityStatus, note string) (bool, error)
		UpdateNote(ctx context.Context, activity *types.Activity, note string) error
		Get(ctx context.Context, id uuid.UUID) (*types.Activity, error)
		ListForInstance(ctx context.Context, instanceID uuid.UUID) ([]*types.Activity, error)
		LatestForInstance(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus) (*types.Activity, error)
		ExpireBuilds(ctx context.Context, olderThan time.Duration) (int, error)
	}

	StartActivityParams struct {
		Type        *types.ActivityType
		TriggeredBy uuid.UUID
		ClientData  map[string]interface{}
		// PostData is the unmapped payload for the build system; it is translated
		// with the type mappings before it is stored.
		PostData   map[string]interface{}
		Instance   *types.Instance
		SalesOrder *types.SalesOrder
	}

	activityService struct {
		activityRepository database.ActivityRepository
		catalogRepository  database.CatalogRepository
		instanceService    InstanceService
		dispatcher         jenkins.Dispatcher
		erp                erpnext.Client
		bus                eventbus.Bus
	}
)

func NewActivityService(activityRepo database.ActivityRepository, catalogRepo database.CatalogRepository,
	instanceService InstanceService, dispatcher jenkins.Dispatcher, erp erpnext.Client, bus eventbus.Bus) ActivityService {
	return &activityService{
		activityRepository: activityRepo,
		catalogRepository:  catalogRepo,
		instanceService:    instanceService,
		dispatcher:         dispatcher,
		erp:                erp,
		bus:                bus,
	}
}

func (s *activityService) Start(ctx context.Context, params StartActivityParams) (*types.Activity, error) {
	activity := &types.Activity{
		ID:             uuid.New(),
		ActivityTypeID: params.Type.ID,
		ActivityType:   *params.Type,
		TriggeredByID:  params.TriggeredBy,
		ClientData:     params.ClientData,
		PostData:       params.Type.MapData(params.PostData),
		Status:         types.ActivityStatusRunning,
		TriggeredAt:    time.Now(),
	}
	if params.Instance != nil {
		activity.InstanceID = &params.Instance.ID
		activity.Instance = params.Instance
	}
	if params.SalesOrder != nil {
		activity.SalesOrderID = &params.SalesOrder.ID
		activity.SalesOrder = params.SalesOrder
	}

	if err := s.activityRepository.Create(ctx, activity); err != nil {
		return nil, err
	}
	logger.Info("activity created",
		zap.String("activity", activity.ID.String()),
		zap.String("type", activity.ActivityType.String()),
		zap.String("app_name", activity.AppName()))
	s.afterStatusChange(ctx, activity, "")

	s.Run(ctx, activity)
	return activity, nil
}

// Run dispatches the activity to the build system and, for creations, creates the
// instance once the build is queued.
func (s *activityService) Run(ctx context.Context, activity *types.Activity) {
	queueURL, err := s.dispatcher.Dispatch(ctx, activity.ActivityType.URL, activity.PostData)
	if err != nil {
		logger.Warn("dispatch failed",
			zap.String("activity", activity.ID.String()),
			zap.String("app_name", activity.AppName()),
			zap.Error(err))
		s.fail(ctx, activity, err.Error())
		return
	}

	activity.JenkinsQueueURL = queueURL
	if _, err := s.updateStatus(ctx, activity, types.ActivityStatusBuildArgo, nil, &queueURL); err != nil {
		logger.Error("failed to record dispatch", zap.String("activity", activity.ID.String()), zap.Error(err))
		return
	}

	if activity.IsCreation() {
		if err := s.materialize(ctx, activity); err != nil {
			logger.Warn("failed to create instance",
				zap.String("activity", activity.ID.String()),
				zap.String("app_name", activity.AppName()),
				zap.Error(err))
			s.fail(ctx, activity, err.Error())
		}
	}
}

func (s *activityService) UpdateStatus(ctx context.Context, activity *types.Activity, status types.ActivityStatus, note string) (bool, error) {
	return s.updateStatus(ctx, activity, status, &note, nil)
}

func (s *activityService) UpdateNote(ctx context.Context, activity *types.Activity, note string) error {
	if err := s.activityRepository.UpdateNote(ctx, activity.ID, note); err != nil {
		return err
	}
	activity.Note = note
	return nil
}

func (s *activityService) Get(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	return s.activityRepository.FindByID(ctx, id)
}

func (s *activityService) ListForInstance(ctx context.Context, instanceID uuid.UUID) ([]*types.Activity, error) {
	return s.activityRepository.FindByInstance(ctx, instanceID)
}

func (s *activityService) LatestForInstance(ctx context.Context, instanceID uuid.UUID, status types.ActivityStatus) (*types.Activity, error) {
	return s.activityRepository.FindLatestForInstance(ctx, instanceID, status)
}

// ExpireBuilds fails activities that waited in BUILD_ARGO longer than olderThan.
func (s *activityService) ExpireBuilds(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.activityRepository.FindStale(ctx, types.ActivityStatusBuildArgo, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, activity := range stale {
		note := fmt.Sprintf("No confirmation received from the build system within %s.", olderThan)
		changed, err := s.UpdateStatus(ctx, activity, types.ActivityStatusError, note)
		if err != nil {
			logger.Error("failed to expire activity", zap.String("activity", activity.ID.String()), zap.Error(err))
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

func (s *activityService) fail(ctx context.Context, activity *types.Activity, note string) {
	if _, err := s.UpdateStatus(ctx, activity, types.ActivityStatusError, note); err != nil {
		logger.Error("failed to record activity error", zap.String("activity", activity.ID.String()), zap.Error(err))
	}
}

func (s *activityService) updateStatus(ctx context.Context, activity *types.Activity, status types.ActivityStatus, note, queueURL *string) (bool, error) {
	changed, err := s.activityRepository.UpdateStatus(ctx, activity, database.ActivityUpdate{
		Status:          status,
		Note:            note,
		JenkinsQueueURL: queueURL,
	})
	if err != nil {
		return false, err
	}
	if !changed {
		logger.Debug("activity already finished, status change ignored",
			zap.String("activity", activity.ID.String()),
			zap.String("status", status.String()))
		return false, nil
	}

	logger.Info("activity status changed",
		zap.String("activity", activity.ID.String()),
		zap.String("app_name", activity.AppName()),
		zap.String("status", status.String()))

	noteValue := ""
	if note != nil {
		noteValue = *note
	}
	s.afterStatusChange(ctx, activity, noteValue)
	return true, nil
}

// afterStatusChange runs the side effects of a persisted status change. None of
// them can undo the change, so their failures are logged.
func (s *activityService) afterStatusChange(ctx context.Context, activity *types.Activity, note string) {
	if activity.InstanceID != nil {
		s.bus.BroadcastWithData(activity.InstanceID.String(), eventbus.ActivityStatus, activity.Status.String(), map[string]string{
			"id":     activity.ID.String(),
			"type":   activity.ActivityType.String(),
			"status": activity.Status.String(),
		})
	}

	if activity.SalesOrder != nil {
		s.syncSalesOrder(ctx, activity, note)
	}

	if activity.InstanceID == nil {
		return
	}
	var err error
	switch activity.Status {
	case types.ActivityStatusSuccess:
		err = s.instanceService.Success(ctx, *activity.InstanceID, activity)
	case types.ActivityStatusError:
		if !activity.IsDeletion() {
			err = s.instanceService.Error(ctx, *activity.InstanceID)
		}
	}
	if err != nil {
		logger.Error("failed to update instance after activity change",
			zap.String("activity", activity.ID.String()),
			zap.String("instance", activity.InstanceID.String()),
			zap.Error(err))
	}
}

func (s *activityService) syncSalesOrder(ctx context.Context, activity *types.Activity, note string) {
	order := activity.SalesOrder
	if order.ErpnextCode == "" {
		return
	}

	comment := fmt.Sprintf("Auto deployment: %s.", activity.Status)
	if note != "" {
		comment += "\n" + note
	}
	if err := s.erp.AddComment(ctx, order.Customer, order.ErpnextCode, comment); err != nil {
		logger.Warn("failed to comment on sales order", zap.String("sales_order", order.ID.String()), zap.Error(err))
	}

	if activity.Status == types.ActivityStatusSuccess {
		order.OrderStatus = types.SalesOrderDeployed
		if err := s.erp.UpdateSalesOrderStatus(ctx, order.ErpnextCode, order.OrderStatus); err != nil {
			logger.Warn("failed to push sales order status", zap.String("sales_order", order.ID.String()), zap.Error(err))
		}
	}
}

// materialize creates the instance of a queued creation activity. The cluster comes
// from the product cluster stored on the activity when it was created.
func (s *activityService) materialize(ctx context.Context, activity *types.Activity) error {
	if activity.InstanceID != nil || activity.JenkinsQueueURL == "" {
		return nil
	}

	var packageID uuid.UUID
	if activity.SalesOrder != nil {
		packageID = activity.SalesOrder.PackageID
	} else {
		pkg, err := s.catalogRepository.FindPackageByCode(ctx, activity.ClientString(types.KeyPackageCode))
		if err != nil {
			return errors.Wrap(err, "package of the activity is not available")
		}
		packageID = pkg.ID
	}

	productClusterID, err := uuid.Parse(activity.ClientString(types.KeyProductClusterID))
	if err != nil {
		return errors.New("activity has no product cluster")
	}
	productCluster, err := s.catalogRepository.FindProductClusterByID(ctx, productClusterID)
	if err != nil {
		return errors.Wrap(err, "cluster of the activity is not available")
	}

	instance := &types.Instance{
		ID:        uuid.New(),
		Name:      activity.AppName(),
		PackageID: packageID,
		ClusterID: productCluster.ClusterID,
		OwnerID:   activity.TriggeredByID,
		Status:    types.InstanceStatusDeploying,
	}
	if companyID, err := uuid.Parse(activity.ClientString(types.KeyCompanyID)); err == nil {
		instance.CompanyID = &companyID
	}

	created, err := s.instanceService.Materialize(ctx, instance, activity.ID)
	if err != nil {
		return err
	}
	if created {
		activity.InstanceID = &instance.ID
		activity.Instance = instance
	}
	return nil
}
