package entitlements

import (
	"errors"
	"fmt"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Free plan quota limits.
const (
	FreeProjectLimit = 3
	FreeTaskLimit    = 100
	FreeMemberLimit  = 4
)

var (
	// ErrBillingRequired blocks writes for orgs in a delinquent billing state.
	ErrBillingRequired = errors.New("billing_required")
)

// QuotaError reports an exhausted free-plan quota.
type QuotaError struct {
	Resource Resource
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("free_plan_%s_limit", e.Resource)
}

// Resource names a countable free-plan quota.
type Resource string

const (
	ResourceProjects Resource = "project"
	ResourceTasks    Resource = "task"
	ResourceMembers  Resource = "member"
)

// BillingView is the read-only billing state exposed to the gate. Only the
// reconciliation engine writes these fields; everything else observes them
// through this interface.
type BillingView interface {
	CurrentPlan() models.Plan
	CurrentSubscriptionStatus() models.SubscriptionStatus
}

// blocked statuses stop all mutating requests, independent of plan. A past_due
// org is still billed as pro (grace-period accounting) yet blocked here.
func writeBlocked(s models.SubscriptionStatus) bool {
	switch s {
	case models.SubscriptionPastDue, models.SubscriptionCanceled, models.SubscriptionUnpaid:
		return true
	}
	return false
}

// EnforceBillingWritable returns ErrBillingRequired when billing state blocks writes.
func EnforceBillingWritable(v BillingView) error {
	if writeBlocked(v.CurrentSubscriptionStatus()) {
		return ErrBillingRequired
	}
	return nil
}

// EnforceFreeLimit checks a free-plan quota by counting current rows.
func EnforceFreeLimit(db *gorm.DB, orgID uuid.UUID, resource Resource) error {
	var n int64
	var limit int64

	switch resource {
	case ResourceProjects:
		limit = FreeProjectLimit
		if err := db.Model(&models.Project{}).Where("org_id = ?", orgID).Count(&n).Error; err != nil {
			return err
		}
	case ResourceTasks:
		limit = FreeTaskLimit
		if err := db.Model(&models.Task{}).Where("org_id = ?", orgID).Count(&n).Error; err != nil {
			return err
		}
	case ResourceMembers:
		limit = FreeMemberLimit
		if err := db.Model(&models.Membership{}).Where("org_id = ?", orgID).Count(&n).Error; err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown quota resource: %s", resource)
	}

	if n >= limit {
		return &QuotaError{Resource: resource}
	}
	return nil
}
