package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the per-org role of a member.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Membership links a user to an org with a role. Composite primary key keeps
// one membership per (user, org).
type Membership struct {
	UserID    uuid.UUID `gorm:"type:char(36);primaryKey" json:"user_id"`
	OrgID     uuid.UUID `gorm:"type:char(36);primaryKey;index" json:"org_id"`
	Role      Role      `gorm:"type:varchar(10);not null;default:'member'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
