package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthMagicLink is a single-use login token, stored only as a peppered hash.
type AuthMagicLink struct {
	TokenHash string     `gorm:"type:char(64);primaryKey" json:"-"`
	UserID    uuid.UUID  `gorm:"type:char(36);not null;index" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
