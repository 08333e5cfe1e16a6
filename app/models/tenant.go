package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
	TenantStatusDisabled = "disabled"
)

// Tenant is a customer organization; the unit of data isolation.
// All canonical fleet records and integration connections hang off a tenant.
type Tenant struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	ContactEmail  string         `gorm:"type:varchar(200)" json:"contact_email" validate:"omitempty,email,max=200"`
	Status        string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	APIKeyHash    string         `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	APIKeyLastUse *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Tenant) Validate() error {
	v := validator.New()
	return v.Struct(t)
}

// HashAPIKey returns the hex SHA-256 of a raw API key. Only the hash is
// persisted; the raw key is shown to the operator once at creation time.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a new random API key and its storable hash.
func GenerateAPIKey() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = "tw_" + hex.EncodeToString(buf)
	return raw, HashAPIKey(raw), nil
}
