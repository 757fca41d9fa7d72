package service

import (
	"context"
	"fmt"
	"geohost/internal/database"
	"geohost/internal/integrations/erpnext"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type (
	SalesOrderService interface {
		Get(ctx context.Context, id uuid.UUID) (*types.SalesOrder, error)
		// Configure stores the app name chosen by the customer and deploys the order
		// when it is waiting for configuration.
		Configure(ctx context.Context, id uuid.UUID, actorID uuid.UUID, params types.ConfigureSalesOrderParams) (*types.Activity, error)
		AutoDeploy(ctx context.Context, order *types.SalesOrder) (*types.Activity, error)
	}

	salesOrderService struct {
		salesOrderRepository database.SalesOrderRepository
		userRepository       database.UserRepository
		provisioning         ProvisioningService
		erp                  erpnext.Client
		validate             *validator.Validate
	}
)

func NewSalesOrderService(salesOrderRepo database.SalesOrderRepository, userRepo database.UserRepository,
	provisioning ProvisioningService, erp erpnext.Client, validate *validator.Validate) SalesOrderService {
	return &salesOrderService{
		salesOrderRepository: salesOrderRepo,
		userRepository:       userRepo,
		provisioning:         provisioning,
		erp:                  erp,
		validate:             validate,
	}
}

func (s *salesOrderService) Get(ctx context.Context, id uuid.UUID) (*types.SalesOrder, error) {
	return s.salesOrderRepository.FindByID(ctx, id)
}

func (s *salesOrderService) Configure(ctx context.Context, id uuid.UUID, actorID uuid.UUID, params types.ConfigureSalesOrderParams) (*types.Activity, error) {
	if err := validateStruct(s.validate, params); err != nil {
		return nil, err
	}

	order, err := s.salesOrderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.userRepository.FindByID(ctx, actorID)
	if err != nil {
		return nil, asValidation(err, "User is missing.")
	}
	if !actor.IsAdmin && order.CustomerID != actor.ID {
		return nil, errors.Wrap(types.ErrForbidden, "You are not allowed to configure this order.")
	}
	if order.OrderStatus != types.SalesOrderWaitingPayment && order.OrderStatus != types.SalesOrderWaitingConfiguration {
		return nil, types.NewValidationError("Sales order is already %s.", order.OrderStatus)
	}

	if err := s.provisioning.ValidateAppName(ctx, params.AppName); err != nil {
		return nil, err
	}
	if err := s.salesOrderRepository.UpdateAppName(ctx, order.ID, params.AppName); err != nil {
		return nil, err
	}
	order.AppName = params.AppName

	if order.OrderStatus != types.SalesOrderWaitingConfiguration {
		return nil, nil
	}
	return s.AutoDeploy(ctx, order)
}

// AutoDeploy creates the deployment activity of a paid order in the default region.
// Validation problems are reported on the ERP record and returned.
func (s *salesOrderService) AutoDeploy(ctx context.Context, order *types.SalesOrder) (*types.Activity, error) {
	if order.AppName == "" || order.ErpnextCode == "" {
		return nil, nil
	}

	s.comment(ctx, order, fmt.Sprintf("App name : %s", order.AppName))
	if err := s.salesOrderRepository.UpdateStatus(ctx, order.ID, types.SalesOrderWaitingDeployment); err != nil {
		return nil, err
	}
	order.OrderStatus = types.SalesOrderWaitingDeployment
	if err := s.erp.UpdateSalesOrderStatus(ctx, order.ErpnextCode, order.OrderStatus); err != nil {
		logger.Warn("failed to push sales order status", zap.String("sales_order", order.ID.String()), zap.Error(err))
	}

	activity, err := s.provisioning.CreateInstance(ctx, order.CustomerID, types.CreateInstanceParams{
		AppName:      order.AppName,
		PackageID:    order.PackageID,
		SalesOrderID: &order.ID,
	})
	if err != nil {
		if types.IsValidationError(err) {
			s.comment(ctx, order, err.Error())
		}
		return nil, err
	}
	return activity, nil
}

func (s *salesOrderService) comment(ctx context.Context, order *types.SalesOrder, comment string) {
	if err := s.erp.AddComment(ctx, order.Customer, order.ErpnextCode, comment); err != nil {
		logger.Warn("failed to comment on sales order", zap.String("sales_order", order.ID.String()), zap.Error(err))
	}
}
