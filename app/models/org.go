package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan is the internal entitlement plan of an org.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// SubscriptionStatus mirrors the provider-side subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionNone       SubscriptionStatus = "none"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
)

// Org is the tenant unit. Plan and SubscriptionStatus are owned by the billing
// reconciliation engine; everything else must treat them as read-only.
type Org struct {
	ID                   uuid.UUID          `gorm:"type:char(36);primaryKey" json:"id"`
	Name                 string             `gorm:"type:varchar(120);not null" json:"name"`
	Plan                 Plan               `gorm:"type:varchar(10);not null;default:'free'" json:"plan"`
	SubscriptionStatus   SubscriptionStatus `gorm:"type:varchar(16);not null;default:'none'" json:"subscription_status"`
	StripeCustomerID     *string            `gorm:"type:varchar(255);index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string            `gorm:"type:varchar(255);index" json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time         `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt            time.Time          `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Org) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// CurrentPlan implements entitlements.BillingView.
func (o *Org) CurrentPlan() Plan { return o.Plan }

// CurrentSubscriptionStatus implements entitlements.BillingView.
func (o *Org) CurrentSubscriptionStatus() SubscriptionStatus { return o.SubscriptionStatus }
