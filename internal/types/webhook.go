package types

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"strings"
	"time"
)

// Webhook status sentinels sent by the GitOps controller.
const (
	WebhookStatusRunning   = "running"
	WebhookStatusError     = "error"
	WebhookStatusFailed    = "failed"
	WebhookStatusOutOfSync = "outofsync"
	WebhookStatusUnknown   = "unknown"
	WebhookStatusSuccess   = "success"
	WebhookStatusSucceeded = "succeeded"
	WebhookStatusSynced    = "synced"
	WebhookStatusDeleted   = "deleted"
)

var (
	WebhookErrorStatuses   = []string{WebhookStatusError, WebhookStatusFailed, WebhookStatusOutOfSync, WebhookStatusUnknown}
	WebhookSuccessStatuses = []string{WebhookStatusSuccess, WebhookStatusSucceeded, WebhookStatusSynced, WebhookStatusDeleted}
)

type (
	// WebhookEvent is the append-only trail of every inbound callback.
	WebhookEvent struct {
		ID          uuid.UUID         `gorm:"primaryKey" json:"id"`
		TriggeredAt time.Time         `gorm:"index" json:"triggered_at"`
		Data        datatypes.JSONMap `json:"data"`
		AppName     string            `gorm:"index" json:"app_name"`
		Source      string            `json:"source"`
		Status      string            `gorm:"index" json:"status"`
		ActivityID  *uuid.UUID        `gorm:"index" json:"activity_id"`
		Activity    *Activity         `gorm:"foreignKey:ActivityID" json:"-"`
		Note        string            `json:"note"`
	}

	// WebhookPayload is the decoded callback. Status and Source arrive either lower
	// or title cased depending on the sender, both spellings are accepted.
	WebhookPayload struct {
		AppName string `validate:"required"`
		Status  string `validate:"required"`
		Source  string `validate:"required"`
		Message string
	}
)

// ParseWebhookPayload extracts the known keys from a raw callback body.
func ParseWebhookPayload(data map[string]interface{}) WebhookPayload {
	return WebhookPayload{
		AppName: stringValue(data, "app_name", "App_name"),
		Status:  strings.ToLower(stringValue(data, "status", "Status")),
		Source:  strings.ToLower(stringValue(data, "source", "Source")),
		Message: stringValue(data, "message", "Message"),
	}
}

func stringValue(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
