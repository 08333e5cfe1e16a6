package models

import (
	"time"

	"gorm.io/datatypes"
)

// Auth strategies supported by the connector framework. The set is closed:
// adding a provider with a new scheme means adding a constant here and a
// branch in the token lifecycle manager, checked at compile time.
const (
	AuthStrategyClientCredentials = "client_credentials"
	AuthStrategyAuthorizationCode = "authorization_code"
	AuthStrategySession           = "session"
	AuthStrategyAPIKey            = "api_key"
)

// IntegrationDefinition is a catalog entry describing one external provider.
// Rows are seeded at startup and treated as immutable afterwards; tenant
// integrations reference them, never own them.
type IntegrationDefinition struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Key          string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	DisplayName  string         `gorm:"type:varchar(150);not null" json:"display_name"`
	Category     string         `gorm:"type:varchar(50)" json:"category"`
	AuthStrategy string         `gorm:"type:varchar(32);not null" json:"auth_strategy"`
	Capabilities datatypes.JSON `gorm:"type:json" json:"capabilities"`
	Enabled      bool           `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidAuthStrategy reports whether s is one of the four supported schemes.
func ValidAuthStrategy(s string) bool {
	switch s {
	case AuthStrategyClientCredentials, AuthStrategyAuthorizationCode, AuthStrategySession, AuthStrategyAPIKey:
		return true
	}
	return false
}
