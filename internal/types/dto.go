package types

import (
	"github.com/google/uuid"
)

type (
	CreateInstanceParams struct {
		AppName    string     `json:"app_name" validate:"required,max=63,appname"`
		PackageID  uuid.UUID  `json:"package_id" validate:"required"`
		Product    string     `json:"product"`
		RegionCode string     `json:"region"`
		CompanyID  *uuid.UUID `json:"company_id"`

		SalesOrderID *uuid.UUID `json:"-"`
	}

	DeleteInstanceParams struct {
		InstanceID uuid.UUID
		ActorID    uuid.UUID
	}

	ConfigureSalesOrderParams struct {
		AppName string `json:"app_name" validate:"required,max=63,appname"`
	}

	// WebhookResult describes what the reconciler did with one callback.
	WebhookResult struct {
		EventID    uuid.UUID  `json:"event_id"`
		ActivityID *uuid.UUID `json:"activity_id,omitempty"`
		Action     string     `json:"action"`
	}

	InstanceCredentials map[string]string
)

// Reconciler actions reported back to the webhook caller.
const (
	WebhookActionIgnored   = "ignored"
	WebhookActionProgress  = "in_progress"
	WebhookActionError     = "activity_error"
	WebhookActionSuccess   = "activity_success"
	WebhookActionDuplicate = "duplicate"
	WebhookActionWaiting   = "awaiting_deletion"
)
