package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventStatus is the ledger state of a webhook event. Processed and ignored are
// terminal; failed may be revisited when the provider re-sends the event id.
type EventStatus string

const (
	EventReceived  EventStatus = "received"
	EventProcessed EventStatus = "processed"
	EventIgnored   EventStatus = "ignored"
	EventFailed    EventStatus = "failed"
)

// Terminal reports whether resends of an event in this state are no-ops.
func (s EventStatus) Terminal() bool {
	switch s {
	case EventProcessed, EventIgnored:
		return true
	case EventReceived, EventFailed:
		return false
	}
	return false
}

// MaxEventErrorLen bounds the stored processing error text.
const MaxEventErrorLen = 1000

// WebhookEvent stores every provider webhook delivery with deduplication
// metadata. The unique (provider, event_id) index is the dedup boundary and is
// enforced by the database, not just application logic.
type WebhookEvent struct {
	ID          uuid.UUID   `gorm:"type:char(36);primaryKey" json:"id"`
	Provider    string      `gorm:"type:varchar(50);not null;index:ux_webhook_events_provider_event,unique,priority:1" json:"provider"`
	EventID     string      `gorm:"type:varchar(255);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"event_id"`
	EventType   string      `gorm:"type:varchar(255);not null;index" json:"event_type"`
	Status      EventStatus `gorm:"type:varchar(16);not null;default:'received';index" json:"status"`
	Error       string      `gorm:"type:text" json:"error,omitempty"`
	Payload     string      `gorm:"type:longtext" json:"payload"`
	ReceivedAt  time.Time   `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt *time.Time  `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TruncateEventError bounds error text before it is persisted on a failed event.
func TruncateEventError(msg string) string {
	if len(msg) > MaxEventErrorLen {
		return msg[:MaxEventErrorLen]
	}
	return msg
}
