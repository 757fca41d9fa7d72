package service

import (
	"context"
	"geohost/internal/database"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strings"
)

type (
	// ProvisioningService validates create and delete requests and turns accepted
	// ones into activities. Rejected requests have no side effects.
	ProvisioningService interface {
		CreateInstance(ctx context.Context, actorID uuid.UUID, params types.CreateInstanceParams) (*types.Activity, error)
		DeleteInstance(ctx context.Context, params types.DeleteInstanceParams) (*types.Activity, error)
		ValidateAppName(ctx context.Context, name string) error
	}

	provisioningService struct {
		activityService      ActivityService
		instanceService      InstanceService
		activityRepository   database.ActivityRepository
		instanceRepository   database.InstanceRepository
		catalogRepository    database.CatalogRepository
		userRepository       database.UserRepository
		salesOrderRepository database.SalesOrderRepository
		validate             *validator.Validate
	}
)

func NewProvisioningService(activityService ActivityService, instanceService InstanceService,
	activityRepo database.ActivityRepository, instanceRepo database.InstanceRepository,
	catalogRepo database.CatalogRepository, userRepo database.UserRepository,
	salesOrderRepo database.SalesOrderRepository, validate *validator.Validate) ProvisioningService {
	return &provisioningService{
		activityService:      activityService,
		instanceService:      instanceService,
		activityRepository:   activityRepo,
		instanceRepository:   instanceRepo,
		catalogRepository:    catalogRepo,
		userRepository:       userRepo,
		salesOrderRepository: salesOrderRepo,
		validate:             validate,
	}
}

// ValidateAppName rejects names in use by a live instance or by a running activity.
func (p *provisioningService) ValidateAppName(ctx context.Context, name string) error {
	if err := p.validate.Var(name, "required,max=63,appname"); err != nil {
		return types.NewValidationError(appNameFormatError)
	}

	live, err := p.instanceRepository.FindActiveByName(ctx, name)
	if err != nil {
		return err
	}
	if len(live) > 0 {
		return types.NewValidationError(appNameTakenError)
	}

	_, err = p.activityRepository.FindOpenByAppName(ctx, name)
	if err == nil {
		return types.NewValidationError(appNameTakenError)
	}
	if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return nil
}

func (p *provisioningService) CreateInstance(ctx context.Context, actorID uuid.UUID, params types.CreateInstanceParams) (*types.Activity, error) {
	if err := validateStruct(p.validate, params); err != nil {
		return nil, err
	}

	actor, err := p.userRepository.FindByID(ctx, actorID)
	if err != nil {
		return nil, asValidation(err, "User is missing.")
	}

	pkg, err := p.catalogRepository.FindPackage(ctx, params.PackageID)
	if err != nil {
		return nil, asValidation(err, "Package does not exist.")
	}
	if params.Product != "" && !strings.EqualFold(pkg.Product.Name, params.Product) {
		return nil, types.NewValidationError("Package %s does not belong to %s.", pkg.Name, params.Product)
	}

	region, err := p.findRegion(ctx, params.RegionCode)
	if err != nil {
		return nil, err
	}

	if err := p.ValidateAppName(ctx, params.AppName); err != nil {
		return nil, err
	}

	productCluster, err := p.catalogRepository.FindProductCluster(ctx, pkg.ProductID, region.ID)
	if err != nil {
		return nil, asValidation(err, "No cluster is available for %s in %s.", pkg.Product.Name, region.Name)
	}

	activityType, err := p.catalogRepository.FindActivityType(ctx, types.ActivityCreateInstance, &pkg.ProductID)
	if err != nil {
		return nil, asValidation(err, "Activity type %s does not exist.", types.ActivityCreateInstance)
	}

	var salesOrder *types.SalesOrder
	if params.SalesOrderID != nil {
		if salesOrder, err = p.salesOrderRepository.FindByID(ctx, *params.SalesOrderID); err != nil {
			return nil, err
		}
	}

	clientData := map[string]interface{}{
		types.KeyAppName:          params.AppName,
		types.KeyPackageID:        pkg.ID.String(),
		types.KeyPackageCode:      pkg.PackageCode,
		types.KeyProductName:      pkg.Product.Name,
		types.KeyRegionID:         region.ID.String(),
		types.KeyRegionName:       region.Name,
		types.KeyProductClusterID: productCluster.ID.String(),
	}
	if params.CompanyID != nil {
		clientData[types.KeyCompanyID] = params.CompanyID.String()
	}

	activity, err := p.activityService.Start(ctx, StartActivityParams{
		Type:        activityType,
		TriggeredBy: actor.ID,
		ClientData:  clientData,
		PostData: map[string]interface{}{
			types.KeyCluster:     productCluster.Cluster.Code,
			types.KeyEnvironment: productCluster.Environment,
			types.KeyPackage:     pkg.PackageCode,
			types.KeyAppName:     params.AppName,
		},
		SalesOrder: salesOrder,
	})
	if errors.Is(err, types.ErrActivityInProgress) {
		return nil, types.NewValidationError(appNameTakenError)
	}
	return activity, err
}

// DeleteInstance marks the instance TERMINATING before dispatching. When the dispatch
// fails the instance stays TERMINATING and the activity note carries the reason.
func (p *provisioningService) DeleteInstance(ctx context.Context, params types.DeleteInstanceParams) (*types.Activity, error) {
	instance, err := p.instanceService.Get(ctx, params.InstanceID)
	if err != nil {
		return nil, err
	}

	actor, err := p.userRepository.FindByID(ctx, params.ActorID)
	if err != nil {
		return nil, asValidation(err, "User is missing.")
	}
	if !actor.IsAdmin && instance.OwnerID != actor.ID {
		return nil, errors.Wrap(types.ErrForbidden, "You are not allowed to delete this instance.")
	}
	if !instance.IsReady() {
		return nil, types.NewValidationError("Instance is not ready.")
	}
	if instance.IsLock() {
		return nil, types.NewValidationError("Instance is already being deleted.")
	}

	activityType, err := p.catalogRepository.FindActivityType(ctx, types.ActivityDeleteInstance, &instance.Package.ProductID)
	if err != nil {
		return nil, asValidation(err, "Activity type %s does not exist.", types.ActivityDeleteInstance)
	}
	productCluster, err := p.catalogRepository.FindProductCluster(ctx, instance.Package.ProductID, instance.Cluster.RegionID)
	if err != nil {
		return nil, asValidation(err, "No cluster is available for %s.", instance.Name)
	}

	previous, changed, err := p.instanceService.Terminating(ctx, instance.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, types.NewValidationError("Instance is already being deleted.")
	}

	activity, err := p.activityService.Start(ctx, StartActivityParams{
		Type:        activityType,
		TriggeredBy: actor.ID,
		ClientData: map[string]interface{}{
			types.KeyAppName:          instance.Name,
			types.KeyPackageID:        instance.PackageID.String(),
			types.KeyProductClusterID: productCluster.ID.String(),
		},
		PostData: map[string]interface{}{
			types.KeyCluster:     instance.Cluster.Code,
			types.KeyEnvironment: productCluster.Environment,
			types.KeyAppName:     instance.Name,
		},
		Instance: instance,
	})
	if err != nil {
		if revertErr := p.instanceService.RevertTerminating(ctx, instance.ID, previous); revertErr != nil {
			logger.Error("failed to revert terminating instance", zap.String("instance", instance.Name), zap.Error(revertErr))
		}
		if errors.Is(err, types.ErrActivityInProgress) {
			return nil, types.NewValidationError("Instance is already being deleted.")
		}
		return nil, err
	}

	if activity.Status == types.ActivityStatusError {
		logger.Warn("deletion was not dispatched, instance stays TERMINATING",
			zap.String("instance", instance.Name),
			zap.String("activity", activity.ID.String()),
			zap.String("note", activity.Note))
	}
	return activity, nil
}

func (p *provisioningService) findRegion(ctx context.Context, code string) (*types.Region, error) {
	if code == "" {
		region, err := p.catalogRepository.FindDefaultRegion(ctx)
		return region, asValidation(err, "No region is configured.")
	}
	region, err := p.catalogRepository.FindRegionByCode(ctx, code)
	return region, asValidation(err, "Region %s does not exist.", code)
}

// asValidation reports a missing record as a validation error with message.
func asValidation(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrNotFound) {
		return types.NewValidationError(format, args...)
	}
	return err
}
