package types

import (
	"github.com/google/uuid"
	"time"
)

// Catalog entities are managed elsewhere and only read by the orchestrator.
type (
	Region struct {
		ID        uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Name      string    `json:"name" yaml:"name"`
		Code      string    `gorm:"uniqueIndex" json:"code" yaml:"code"`
		IsDefault bool      `json:"is_default" yaml:"is_default"`
	}

	Cluster struct {
		ID       uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Code     string    `gorm:"uniqueIndex:idx_cluster_code_region" json:"code" yaml:"code"`
		RegionID uuid.UUID `gorm:"uniqueIndex:idx_cluster_code_region" json:"region_id" yaml:"region_id"`
		Region   Region    `gorm:"foreignKey:RegionID" json:"-" yaml:"-"`
		Domain   string    `json:"domain" yaml:"domain"`
	}

	Product struct {
		ID        uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Name      string    `gorm:"uniqueIndex" json:"name" yaml:"name"`
		Available bool      `json:"available" yaml:"available"`
	}

	ProductCluster struct {
		ID          uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		ProductID   uuid.UUID `gorm:"uniqueIndex:idx_product_cluster" json:"product_id" yaml:"product_id"`
		Product     Product   `gorm:"foreignKey:ProductID" json:"-" yaml:"-"`
		ClusterID   uuid.UUID `gorm:"uniqueIndex:idx_product_cluster" json:"cluster_id" yaml:"cluster_id"`
		Cluster     Cluster   `gorm:"foreignKey:ClusterID" json:"-" yaml:"-"`
		Environment string    `json:"environment" yaml:"environment"`
	}

	Package struct {
		ID          uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Name        string    `json:"name" yaml:"name"`
		ProductID   uuid.UUID `json:"product_id" yaml:"product_id"`
		Product     Product   `gorm:"foreignKey:ProductID" json:"-" yaml:"-"`
		PackageCode string    `gorm:"index" json:"package_code" yaml:"package_code"`
		VaultURL    string    `json:"-" yaml:"vault_url"`
	}

	User struct {
		ID        uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Email     string    `gorm:"uniqueIndex" json:"email" yaml:"email"`
		FirstName string    `json:"first_name" yaml:"first_name"`
		LastName  string    `json:"last_name" yaml:"last_name"`
		IsAdmin   bool      `json:"is_admin" yaml:"is_admin"`
		CreatedAt time.Time `json:"created_at" yaml:"-"`
	}

	Company struct {
		ID   uuid.UUID `gorm:"primaryKey" json:"id" yaml:"id"`
		Name string    `json:"name" yaml:"name"`
	}
)

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
