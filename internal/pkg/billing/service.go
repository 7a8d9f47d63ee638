package billing

import (
	"context"
	"errors"
	"log"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"gorm.io/gorm"
)

// ErrProcessingFailed is returned for any fault while applying an admitted
// event. The detail is persisted on the ledger row for operators; callers
// surface only a generic server error so the provider retries the event id.
var ErrProcessingFailed = errors.New("webhook processing failed")

// Service runs the webhook pipeline: admit into the ledger, apply business
// meaning, finalize the ledger row.
type Service struct {
	repo Repository
}

// NewService creates a service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Process handles one verified delivery. Idempotent per (provider, event_id):
// terminal records short-circuit as duplicates; received/failed records are
// reprocessed in place. Application and finalization run in one transaction
// with the ledger row locked, so concurrent deliveries of the same event id
// serialize and at most one applies effects.
func (s *Service) Process(ctx context.Context, in EventInput) (Result, error) {
	created, stored, err := s.repo.AdmitEvent(ctx, &models.WebhookEvent{
		Provider:  in.Provider,
		EventID:   in.EventID,
		EventType: in.EventType,
		Status:    models.EventReceived,
		Payload:   in.Payload,
	})
	if err != nil {
		return Result{}, err
	}
	if !created && stored.Status.Terminal() {
		return Result{EventID: in.EventID, Duplicate: true}, nil
	}

	var out Outcome
	duplicate := false
	err = s.repo.Transaction(ctx, func(r Repository) error {
		locked, err := r.GetEventForUpdate(ctx, stored.ID)
		if err != nil {
			return err
		}
		// A racing delivery may have finished while we waited on the lock.
		if locked.Status.Terminal() {
			duplicate = true
			return nil
		}

		out, err = apply(ctx, r, in.EventType, in.Object)
		if err != nil {
			return err
		}

		status := models.EventIgnored
		if out.Applied() {
			status = models.EventProcessed
		}
		return r.FinalizeEvent(ctx, locked.ID, status, "")
	})
	if err != nil {
		// Mark failed outside the rolled-back transaction so the row is
		// revisitable when the provider re-sends the same event id.
		if ferr := s.repo.FinalizeEvent(ctx, stored.ID, models.EventFailed, err.Error()); ferr != nil {
			log.Printf("webhook %s/%s: failed to record processing error: %v", in.Provider, in.EventID, ferr)
		}
		log.Printf("webhook %s/%s: processing failed: %v", in.Provider, in.EventID, err)
		return Result{EventID: in.EventID}, ErrProcessingFailed
	}
	if duplicate {
		return Result{EventID: in.EventID, Duplicate: true}, nil
	}

	return Result{EventID: in.EventID, Outcome: out}, nil
}
