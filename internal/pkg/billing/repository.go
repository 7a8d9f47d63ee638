package billing

import (
	"context"
	"errors"
	"time"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the storage operations used by the webhook pipeline.
// Org lookups return (nil, nil) when no row matches.
type Repository interface {
	// AdmitEvent inserts the event unless (provider, event_id) already exists.
	// The uniqueness race between concurrent deliveries is resolved by the
	// database constraint: the losing insert is a no-op and the stored record
	// is re-read, never surfaced as an error.
	AdmitEvent(ctx context.Context, event *models.WebhookEvent) (created bool, stored *models.WebhookEvent, err error)

	// GetEventForUpdate loads the event row under a row lock inside a transaction.
	GetEventForUpdate(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error)

	// FinalizeEvent is the only writer of status, processed_at and error.
	// Terminal statuses set processed_at and clear error; failed clears
	// processed_at and stores the truncated error text.
	FinalizeEvent(ctx context.Context, id uuid.UUID, status models.EventStatus, procErr string) error

	FindOrgByCustomerRef(ctx context.Context, ref string) (*models.Org, error)
	FindOrgBySubscriptionRef(ctx context.Context, ref string) (*models.Org, error)
	FindOrgByID(ctx context.Context, id uuid.UUID) (*models.Org, error)

	// UpdateOrgBilling persists the billing fields owned by the reconciliation
	// engine. No other code path may write plan or subscription_status.
	UpdateOrgBilling(ctx context.Context, org *models.Org) error

	// Transaction runs fn against a transactional view of the repository.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook/billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) AdmitEvent(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetEventForUpdate(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormRepository) FinalizeEvent(ctx context.Context, id uuid.UUID, status models.EventStatus, procErr string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if status == models.EventFailed {
		updates["processed_at"] = nil
		updates["error"] = models.TruncateEventError(procErr)
	} else {
		now := time.Now()
		updates["processed_at"] = &now
		updates["error"] = ""
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *gormRepository) FindOrgByCustomerRef(ctx context.Context, ref string) (*models.Org, error) {
	return r.findOrg(ctx, "stripe_customer_id = ?", ref)
}

func (r *gormRepository) FindOrgBySubscriptionRef(ctx context.Context, ref string) (*models.Org, error) {
	return r.findOrg(ctx, "stripe_subscription_id = ?", ref)
}

func (r *gormRepository) FindOrgByID(ctx context.Context, id uuid.UUID) (*models.Org, error) {
	return r.findOrg(ctx, "id = ?", id)
}

func (r *gormRepository) findOrg(ctx context.Context, query string, arg interface{}) (*models.Org, error) {
	var org models.Org
	err := r.db.WithContext(ctx).Where(query, arg).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) UpdateOrgBilling(ctx context.Context, org *models.Org) error {
	return r.db.WithContext(ctx).
		Model(&models.Org{}).
		Where("id = ?", org.ID).
		Updates(map[string]interface{}{
			"plan":                   org.Plan,
			"subscription_status":    org.SubscriptionStatus,
			"stripe_subscription_id": org.StripeSubscriptionID,
		}).Error
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
