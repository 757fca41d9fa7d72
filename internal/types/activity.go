package types

import (
	"fmt"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"time"
)

type (
	ActivityStatus string
	ActivityTerm   string
)

const (
	ActivityStatusRunning   ActivityStatus = "RUNNING"
	ActivityStatusBuildArgo ActivityStatus = "BUILD_ARGO"
	ActivityStatusSuccess   ActivityStatus = "SUCCESS"
	ActivityStatusError     ActivityStatus = "ERROR"
)

const (
	ActivityCreateInstance ActivityTerm = "INSTANCE.CREATE"
	ActivityDeleteInstance ActivityTerm = "INSTANCE.DELETE"
)

// Keys of the internal payload stored on Activity.ClientData.
const (
	KeyAppName          = "app_name"
	KeyPackageID        = "package_id"
	KeyPackageCode      = "package_code"
	KeyProductName      = "product_name"
	KeyRegionID         = "region_id"
	KeyRegionName       = "region_name"
	KeyProductClusterID = "product_cluster_id"
	KeyCluster          = "cluster"
	KeyEnvironment      = "environment"
	KeyPackage          = "package"
	KeyCompanyID        = "company_id"
)

// TerminalActivityStatuses never transition again once reached.
var TerminalActivityStatuses = []ActivityStatus{ActivityStatusSuccess, ActivityStatusError}

type (
	// ActivityType describes one operation kind, optionally scoped to a product.
	// A nil ProductID marks the generic type used when no product specific one exists.
	ActivityType struct {
		ID         uuid.UUID             `gorm:"primaryKey" json:"id" yaml:"id"`
		Identifier ActivityTerm          `gorm:"uniqueIndex:idx_activity_type_identifier_product" json:"identifier" yaml:"identifier"`
		URL        string                `json:"url" yaml:"url"`
		ProductID  *uuid.UUID            `gorm:"uniqueIndex:idx_activity_type_identifier_product" json:"product_id" yaml:"product_id"`
		Product    *Product              `gorm:"foreignKey:ProductID" json:"-" yaml:"-"`
		Mappings   []ActivityTypeMapping `gorm:"foreignKey:ActivityTypeID" json:"mappings" yaml:"mappings"`
	}

	// ActivityTypeMapping translates one internal key to the name the build system expects.
	ActivityTypeMapping struct {
		ID             uuid.UUID `gorm:"primaryKey" json:"-" yaml:"-"`
		ActivityTypeID uuid.UUID `gorm:"index" json:"-" yaml:"-"`
		Position       int       `json:"position" yaml:"position"`
		InternalKey    string    `json:"internal_key" yaml:"internal_key"`
		ExternalKey    string    `json:"external_key" yaml:"external_key"`
	}

	Activity struct {
		ID              uuid.UUID         `gorm:"primaryKey" json:"id"`
		ActivityTypeID  uuid.UUID         `gorm:"not null" json:"activity_type_id"`
		ActivityType    ActivityType      `gorm:"foreignKey:ActivityTypeID" json:"activity_type"`
		InstanceID      *uuid.UUID        `gorm:"index" json:"instance_id"`
		Instance        *Instance         `gorm:"foreignKey:InstanceID" json:"-"`
		TriggeredByID   uuid.UUID         `gorm:"not null" json:"triggered_by_id"`
		TriggeredBy     User              `gorm:"foreignKey:TriggeredByID" json:"-"`
		ClientData      datatypes.JSONMap `json:"client_data"`
		PostData        datatypes.JSONMap `json:"post_data"`
		Status          ActivityStatus    `gorm:"index" json:"status"`
		Note            string            `json:"note"`
		JenkinsQueueURL string            `json:"jenkins_queue_url"`
		SalesOrderID    *uuid.UUID        `json:"sales_order_id"`
		SalesOrder      *SalesOrder       `gorm:"foreignKey:SalesOrderID" json:"-"`

		// OpenKey holds the app name while the activity is running and is cleared
		// once it is terminal. The unique index makes "one open activity per app
		// name" an atomic guarantee of the insert.
		OpenKey *string `gorm:"uniqueIndex" json:"-"`

		TriggeredAt time.Time `gorm:"index" json:"triggered_at"`
	}
)

func (s ActivityStatus) IsTerminal() bool {
	return s == ActivityStatusSuccess || s == ActivityStatusError
}

func (s ActivityStatus) String() string {
	return string(s)
}

// MapData returns the payload keyed by the build system field names. Keys without a
// configured translation are dropped.
func (t *ActivityType) MapData(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(t.Mappings))
	for _, m := range t.Mappings {
		value, ok := data[m.InternalKey]
		if !ok {
			continue
		}
		result[m.ExternalKey] = value
	}
	return result
}

func (t *ActivityType) String() string {
	return string(t.Identifier)
}

func (a *Activity) IsCreation() bool {
	return a.ActivityType.Identifier == ActivityCreateInstance
}

func (a *Activity) IsDeletion() bool {
	return a.ActivityType.Identifier == ActivityDeleteInstance
}

func (a *Activity) AppName() string {
	return a.ClientString(KeyAppName)
}

// ClientString reads a value of the client payload as a string.
func (a *Activity) ClientString(key string) string {
	v, ok := a.ClientData[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
