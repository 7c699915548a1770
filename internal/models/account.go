package models

import (
	"time"

	"gorm.io/gorm"
)

// Account represents one tenant: a storefront connected to the commerce platform.
// Platform credentials are used for outbound API sessions; the API key hash
// authenticates inbound webhooks for this account.
type Account struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`

	// Commerce platform connection
	PlatformURL    string `gorm:"not null" json:"platform_url"`
	PlatformUser   string `json:"platform_user"`
	PlatformSecret string `json:"-"` // API secret for platform login

	// Inbound webhook authentication (bcrypt hash, see utils.CheckAPIKey)
	APIKeyHash string `json:"-"`

	Active bool `gorm:"default:true" json:"active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}
