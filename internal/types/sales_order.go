package types

import (
	"github.com/google/uuid"
	"time"
)

type SalesOrderStatus string

const (
	SalesOrderWaitingPayment       SalesOrderStatus = "Waiting Payment"
	SalesOrderWaitingConfiguration SalesOrderStatus = "Waiting Configuration"
	SalesOrderWaitingDeployment    SalesOrderStatus = "Waiting Deployment"
	SalesOrderDeployed             SalesOrderStatus = "Deployed"
)

// SalesOrder is the billing side of a purchase. Only the fields that drive
// provisioning are modelled here.
type SalesOrder struct {
	ID                   uuid.UUID        `gorm:"primaryKey" json:"id"`
	CustomerID           uuid.UUID        `gorm:"not null" json:"customer_id"`
	Customer             User             `gorm:"foreignKey:CustomerID" json:"-"`
	PackageID            uuid.UUID        `gorm:"not null" json:"package_id"`
	Package              Package          `gorm:"foreignKey:PackageID" json:"-"`
	AppName              string           `json:"app_name"`
	OrderStatus          SalesOrderStatus `json:"order_status"`
	ErpnextCode          string           `json:"erpnext_code"`
	StripeSubscriptionID string           `json:"-"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"-"`
}

// ErpStatus returns the billing and delivery status pushed to the ERP for the order status.
func (s SalesOrderStatus) ErpStatus() (billingStatus string, status string, perBilled int) {
	switch s {
	case SalesOrderWaitingConfiguration:
		return "Fully Billed", "On Hold", 100
	case SalesOrderWaitingDeployment:
		return "Fully Billed", "To Deliver", 100
	case SalesOrderDeployed:
		return "Fully Billed", "Completed", 100
	default:
		return "Not Billed", "To Bill", 0
	}
}
