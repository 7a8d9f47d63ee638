package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonasWeigert/TeamDesk/app/models"
)

// memRepo is an in-memory Repository that mirrors the database semantics the
// pipeline relies on: unique (provider, event_id) admission and finalize-only
// writes of the ledger status fields.
type memRepo struct {
	mu     sync.Mutex
	events map[string]*models.WebhookEvent
	orgs   map[uuid.UUID]*models.Org
}

func newMemRepo() *memRepo {
	return &memRepo{
		events: map[string]*models.WebhookEvent{},
		orgs:   map[uuid.UUID]*models.Org{},
	}
}

func (r *memRepo) addOrg(org *models.Org) *models.Org {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	r.orgs[org.ID] = org
	return org
}

func eventKey(provider, eventID string) string { return provider + "|" + eventID }

func (r *memRepo) AdmitEvent(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := eventKey(event.Provider, event.EventID)
	if existing, ok := r.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	event.ID = uuid.New()
	event.ReceivedAt = time.Now()
	cp := *event
	r.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (r *memRepo) GetEventForUpdate(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, errors.New("event not found")
}

func (r *memRepo) FinalizeEvent(ctx context.Context, id uuid.UUID, status models.EventStatus, procErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.ID == id {
			ev.Status = status
			if status == models.EventFailed {
				ev.ProcessedAt = nil
				ev.Error = models.TruncateEventError(procErr)
			} else {
				now := time.Now()
				ev.ProcessedAt = &now
				ev.Error = ""
			}
			return nil
		}
	}
	return errors.New("event not found")
}

func (r *memRepo) FindOrgByCustomerRef(ctx context.Context, ref string) (*models.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, org := range r.orgs {
		if org.StripeCustomerID != nil && *org.StripeCustomerID == ref {
			return org, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindOrgBySubscriptionRef(ctx context.Context, ref string) (*models.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, org := range r.orgs {
		if org.StripeSubscriptionID != nil && *org.StripeSubscriptionID == ref {
			return org, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindOrgByID(ctx context.Context, id uuid.UUID) (*models.Org, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orgs[id], nil
}

func (r *memRepo) UpdateOrgBilling(ctx context.Context, org *models.Org) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orgs[org.ID]
	if !ok {
		return errors.New("org not found")
	}
	stored.Plan = org.Plan
	stored.SubscriptionStatus = org.SubscriptionStatus
	stored.StripeSubscriptionID = org.StripeSubscriptionID
	return nil
}

func (r *memRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}

func (r *memRepo) event(provider, eventID string) *models.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[eventKey(provider, eventID)]
}

func strPtr(s string) *string { return &s }

func objectJSON(t *testing.T, obj map[string]interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	return raw
}

func processEvent(t *testing.T, svc *Service, id, eventType string, object json.RawMessage) (Result, error) {
	t.Helper()
	return svc.Process(context.Background(), EventInput{
		Provider:  ProviderStripe,
		EventID:   id,
		EventType: eventType,
		Payload:   fmt.Sprintf(`{"id":%q,"type":%q}`, id, eventType),
		Object:    object,
	})
}

func TestProcessInvoicePaid(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{
		Name:             "acme",
		Plan:             models.PlanFree,
		StripeCustomerID: strPtr("cus_1"),
	})
	svc := NewService(repo)

	obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "subscription": "sub_1"})
	res, err := processEvent(t, svc, "evt_1", EventInvoicePaid, obj)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !res.Outcome.Applied() || res.Duplicate {
		t.Fatalf("expected applied, got %+v", res)
	}

	if org.Plan != models.PlanPro || org.SubscriptionStatus != models.SubscriptionActive {
		t.Fatalf("org not reconciled: plan=%s status=%s", org.Plan, org.SubscriptionStatus)
	}
	if org.StripeSubscriptionID == nil || *org.StripeSubscriptionID != "sub_1" {
		t.Fatalf("subscription ref not linked: %v", org.StripeSubscriptionID)
	}

	ev := repo.event(ProviderStripe, "evt_1")
	if ev == nil || ev.Status != models.EventProcessed || ev.ProcessedAt == nil || ev.Error != "" {
		t.Fatalf("ledger row not finalized as processed: %+v", ev)
	}

	// Resending the identical event is a pure no-op.
	res, err = processEvent(t, svc, "evt_1", EventInvoicePaid, obj)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("expected duplicate on resend, got %+v", res)
	}
	if org.SubscriptionStatus != models.SubscriptionActive {
		t.Fatalf("resend mutated org: %+v", org)
	}
}

func TestProcessInvoicePaymentFailed(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{
		Plan:               models.PlanPro,
		SubscriptionStatus: models.SubscriptionActive,
		StripeCustomerID:   strPtr("cus_1"),
	})
	svc := NewService(repo)

	obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "subscription": "sub_1"})
	res, err := processEvent(t, svc, "evt_fail", EventInvoicePaymentFail, obj)
	if err != nil || !res.Outcome.Applied() {
		t.Fatalf("process: res=%+v err=%v", res, err)
	}

	// Grace period: still billed pro, but past_due (the billing gate blocks writes).
	if org.Plan != models.PlanPro || org.SubscriptionStatus != models.SubscriptionPastDue {
		t.Fatalf("expected pro/past_due, got %s/%s", org.Plan, org.SubscriptionStatus)
	}
}

func TestProcessSubscriptionDeleted(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{
		Plan:               models.PlanPro,
		SubscriptionStatus: models.SubscriptionActive,
		StripeCustomerID:   strPtr("cus_1"),
	})
	svc := NewService(repo)

	obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "id": "sub_9", "status": "active"})
	res, err := processEvent(t, svc, "evt_del", EventSubscriptionDeleted, obj)
	if err != nil || !res.Outcome.Applied() {
		t.Fatalf("process: res=%+v err=%v", res, err)
	}

	// Deletion overrides whatever status the event carries.
	if org.Plan != models.PlanFree || org.SubscriptionStatus != models.SubscriptionCanceled {
		t.Fatalf("expected free/canceled, got %s/%s", org.Plan, org.SubscriptionStatus)
	}
}

func TestProcessSubscriptionUpdatedInvariant(t *testing.T) {
	tests := []struct {
		raw        string
		wantStatus models.SubscriptionStatus
		wantPlan   models.Plan
	}{
		{raw: "active", wantStatus: models.SubscriptionActive, wantPlan: models.PlanPro},
		{raw: "trialing", wantStatus: models.SubscriptionTrialing, wantPlan: models.PlanPro},
		{raw: "past_due", wantStatus: models.SubscriptionPastDue, wantPlan: models.PlanPro},
		{raw: "unpaid", wantStatus: models.SubscriptionUnpaid, wantPlan: models.PlanFree},
		{raw: "canceled", wantStatus: models.SubscriptionCanceled, wantPlan: models.PlanFree},
		{raw: "incomplete", wantStatus: models.SubscriptionIncomplete, wantPlan: models.PlanFree},
		{raw: "something_new", wantStatus: models.SubscriptionNone, wantPlan: models.PlanFree},
	}

	for i, tt := range tests {
		repo := newMemRepo()
		org := repo.addOrg(&models.Org{StripeCustomerID: strPtr("cus_1")})
		svc := NewService(repo)

		obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "id": "sub_1", "status": tt.raw})
		res, err := processEvent(t, svc, fmt.Sprintf("evt_up_%d", i), EventSubscriptionUpdated, obj)
		if err != nil || !res.Outcome.Applied() {
			t.Fatalf("%s: res=%+v err=%v", tt.raw, res, err)
		}
		if org.SubscriptionStatus != tt.wantStatus || org.Plan != tt.wantPlan {
			t.Fatalf("%s: got %s/%s, want %s/%s", tt.raw, org.Plan, org.SubscriptionStatus, tt.wantPlan, tt.wantStatus)
		}
	}
}

func TestProcessMissingCustomer(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{StripeCustomerID: strPtr("cus_1")})
	svc := NewService(repo)

	res, err := processEvent(t, svc, "evt_mc", EventSubscriptionUpdated, objectJSON(t, map[string]interface{}{"id": "sub_1"}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeIgnoredMissingCustomer || res.Outcome.Reason() != "missing_customer" {
		t.Fatalf("expected missing_customer, got %+v", res)
	}

	ev := repo.event(ProviderStripe, "evt_mc")
	if ev.Status != models.EventIgnored || ev.ProcessedAt == nil {
		t.Fatalf("expected terminal ignored, got %+v", ev)
	}
	if org.SubscriptionStatus != "" && org.SubscriptionStatus != models.SubscriptionNone {
		t.Fatalf("org mutated: %+v", org)
	}
}

func TestProcessUnknownCustomer(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	obj := objectJSON(t, map[string]interface{}{"customer": "cus_unknown"})
	res, err := processEvent(t, svc, "evt_uc", EventInvoicePaid, obj)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeIgnoredUnknownCustomer {
		t.Fatalf("expected unknown_customer, got %+v", res)
	}
	if ev := repo.event(ProviderStripe, "evt_uc"); ev.Status != models.EventIgnored {
		t.Fatalf("expected ignored, got %s", ev.Status)
	}
}

func TestProcessUnhandledType(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	res, err := processEvent(t, svc, "evt_ch", "charge.succeeded", json.RawMessage(`"whatever"`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeIgnoredUnhandledType {
		t.Fatalf("expected unhandled_type, got %+v", res)
	}

	// Unhandled events are terminal: resending short-circuits as duplicate.
	res, err = processEvent(t, svc, "evt_ch", "charge.succeeded", nil)
	if err != nil || !res.Duplicate {
		t.Fatalf("expected duplicate, got %+v err=%v", res, err)
	}
}

func TestProcessMetadataBootstrap(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{})
	svc := NewService(repo)

	// First event for a brand-new customer: only metadata links it.
	obj := objectJSON(t, map[string]interface{}{
		"customer": "cus_new",
		"metadata": map[string]interface{}{"org_id": org.ID.String()},
	})
	res, err := processEvent(t, svc, "evt_meta", EventInvoicePaid, obj)
	if err != nil || !res.Outcome.Applied() {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if org.SubscriptionStatus != models.SubscriptionActive {
		t.Fatalf("org not reconciled via metadata: %+v", org)
	}

	// A malformed metadata id is no match, not an error.
	obj = objectJSON(t, map[string]interface{}{
		"customer": "cus_other",
		"metadata": map[string]interface{}{"org_id": "not-a-uuid"},
	})
	res, err = processEvent(t, svc, "evt_meta2", EventInvoicePaid, obj)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Outcome != OutcomeIgnoredUnknownCustomer {
		t.Fatalf("expected unknown_customer, got %+v", res)
	}
}

// lockedRepo serializes Transaction the way the database row lock does, so
// concurrent deliveries of one event contend like they would on SELECT FOR
// UPDATE.
type lockedRepo struct {
	*memRepo
	txMu sync.Mutex
}

func (r *lockedRepo) Transaction(ctx context.Context, fn func(Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r.memRepo)
}

func TestProcessConcurrentDeliveries(t *testing.T) {
	repo := &lockedRepo{memRepo: newMemRepo()}
	org := repo.addOrg(&models.Org{StripeCustomerID: strPtr("cus_1")})
	svc := NewService(repo)

	obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "subscription": "sub_1"})

	const deliveries = 16
	results := make([]Result, deliveries)
	errs := make([]error, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = processEvent(t, svc, "evt_race", EventInvoicePaid, obj)
		}(i)
	}
	wg.Wait()

	applied, duplicates := 0, 0
	for i := 0; i < deliveries; i++ {
		if errs[i] != nil {
			t.Fatalf("delivery %d: %v", i, errs[i])
		}
		switch {
		case results[i].Duplicate:
			duplicates++
		case results[i].Outcome.Applied():
			applied++
		default:
			t.Fatalf("delivery %d: unexpected result %+v", i, results[i])
		}
	}
	if applied != 1 || duplicates != deliveries-1 {
		t.Fatalf("want exactly one applied delivery, got applied=%d duplicates=%d", applied, duplicates)
	}

	if org.Plan != models.PlanPro || org.SubscriptionStatus != models.SubscriptionActive {
		t.Fatalf("org not reconciled: %s/%s", org.Plan, org.SubscriptionStatus)
	}
	if ev := repo.event(ProviderStripe, "evt_race"); ev.Status != models.EventProcessed {
		t.Fatalf("ledger row not terminal: %+v", ev)
	}
}

func TestProcessRetryAfterFailure(t *testing.T) {
	repo := newMemRepo()
	org := repo.addOrg(&models.Org{StripeCustomerID: strPtr("cus_1")})
	svc := NewService(repo)

	// Malformed nested object: dispatchable type, non-object payload.
	_, err := processEvent(t, svc, "evt_retry", EventInvoicePaid, json.RawMessage(`[1,2,3]`))
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("expected ErrProcessingFailed, got %v", err)
	}

	ev := repo.event(ProviderStripe, "evt_retry")
	if ev.Status != models.EventFailed || ev.ProcessedAt != nil || ev.Error == "" {
		t.Fatalf("expected failed with error recorded, got %+v", ev)
	}

	// Provider re-sends the same event id with a well-formed object.
	obj := objectJSON(t, map[string]interface{}{"customer": "cus_1", "subscription": "sub_1"})
	res, err := processEvent(t, svc, "evt_retry", EventInvoicePaid, obj)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Duplicate || !res.Outcome.Applied() {
		t.Fatalf("expected applied on retry, got %+v", res)
	}

	ev = repo.event(ProviderStripe, "evt_retry")
	if ev.Status != models.EventProcessed || ev.ProcessedAt == nil || ev.Error != "" {
		t.Fatalf("retry did not clear failure state: %+v", ev)
	}
	if org.SubscriptionStatus != models.SubscriptionActive || org.Plan != models.PlanPro {
		t.Fatalf("effects not applied on retry: %+v", org)
	}
}
