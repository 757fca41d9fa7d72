package types

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

type InstanceStatus string

const (
	InstanceStatusDeploying   InstanceStatus = "DEPLOYING"
	InstanceStatusStartingUp  InstanceStatus = "STARTING_UP"
	InstanceStatusOnline      InstanceStatus = "ONLINE"
	InstanceStatusOffline     InstanceStatus = "OFFLINE"
	InstanceStatusTerminating InstanceStatus = "TERMINATING"
	InstanceStatusTerminated  InstanceStatus = "TERMINATED"
)

type (
	// Instance is one provisioned deployment. Name and cluster are unique among
	// instances that are not terminated, so a released name can be provisioned again.
	Instance struct {
		ID        uuid.UUID      `gorm:"primaryKey" json:"id"`
		Name      string         `gorm:"uniqueIndex:idx_instance_name_cluster,where:status <> 'TERMINATED'" json:"name"`
		PackageID uuid.UUID      `gorm:"not null" json:"package_id"`
		Package   Package        `gorm:"foreignKey:PackageID" json:"-"`
		ClusterID uuid.UUID      `gorm:"uniqueIndex:idx_instance_name_cluster,where:status <> 'TERMINATED'" json:"cluster_id"`
		Cluster   Cluster        `gorm:"foreignKey:ClusterID" json:"-"`
		OwnerID   uuid.UUID      `gorm:"not null;index" json:"owner_id"`
		Owner     User           `gorm:"foreignKey:OwnerID" json:"-"`
		CompanyID *uuid.UUID     `json:"company_id"`
		Company   *Company       `gorm:"foreignKey:CompanyID" json:"-"`
		Status    InstanceStatus `gorm:"index" json:"status"`
		CreatedAt time.Time      `json:"created_at"`
		UpdatedAt time.Time      `json:"modified_at"`
	}
)

// IsLock reports whether the status is immune to further mutating operations.
func (s InstanceStatus) IsLock() bool {
	return s == InstanceStatusTerminating || s == InstanceStatusTerminated
}

// IsReady reports whether deployment has finished, in either direction of health.
func (s InstanceStatus) IsReady() bool {
	return s == InstanceStatusOffline || s == InstanceStatusOnline
}

func (s InstanceStatus) String() string {
	return string(s)
}

func (i *Instance) IsLock() bool {
	return i.Status.IsLock()
}

func (i *Instance) IsReady() bool {
	return i.Status.IsReady()
}

// URL is the public address of the deployment. Requires Cluster to be loaded.
func (i *Instance) URL() string {
	return fmt.Sprintf("https://%s.%s", i.Name, i.Cluster.Domain)
}
