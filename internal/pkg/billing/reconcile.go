package billing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/JonasWeigert/TeamDesk/app/models"
)

// Known provider event types. Anything outside this closed set falls through
// to OutcomeIgnoredUnhandledType.
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
	EventInvoicePaymentFail  = "invoice.payment_failed"
)

var errObjectNotRecord = errors.New("event data.object must be an object")

// apply interprets the business meaning of an event and mutates the resolved
// org's billing fields. It is the sole writer of plan and subscription_status.
func apply(ctx context.Context, r Repository, eventType string, object json.RawMessage) (Outcome, error) {
	switch eventType {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		obj, err := decodeObject(object)
		if err != nil {
			return 0, err
		}
		return applySubscriptionEvent(ctx, r, eventType, obj)

	case EventInvoicePaid, EventInvoicePaymentFail:
		obj, err := decodeObject(object)
		if err != nil {
			return 0, err
		}
		return applyInvoiceEvent(ctx, r, eventType, obj)

	default:
		return OutcomeIgnoredUnhandledType, nil
	}
}

func applySubscriptionEvent(ctx context.Context, r Repository, eventType string, obj map[string]interface{}) (Outcome, error) {
	customer := stringField(obj, "customer")
	if customer == "" {
		return OutcomeIgnoredMissingCustomer, nil
	}

	subID := stringField(obj, "id")
	org, err := resolveOrg(ctx, r, customer, subID, metadataField(obj))
	if err != nil {
		return 0, err
	}
	if org == nil {
		return OutcomeIgnoredUnknownCustomer, nil
	}

	if eventType == EventSubscriptionDeleted {
		// Deletion forces free regardless of the status carried by the event.
		org.SubscriptionStatus = models.SubscriptionCanceled
		org.Plan = models.PlanFree
	} else {
		status := mapSubscriptionStatus(stringField(obj, "status"))
		org.SubscriptionStatus = status
		org.Plan = planForStatus(status)
	}

	if subID != "" {
		org.StripeSubscriptionID = &subID
	}

	if err := r.UpdateOrgBilling(ctx, org); err != nil {
		return 0, err
	}
	return OutcomeApplied, nil
}

func applyInvoiceEvent(ctx context.Context, r Repository, eventType string, obj map[string]interface{}) (Outcome, error) {
	customer := stringField(obj, "customer")
	if customer == "" {
		return OutcomeIgnoredMissingCustomer, nil
	}

	subID := stringField(obj, "subscription")
	org, err := resolveOrg(ctx, r, customer, subID, metadataField(obj))
	if err != nil {
		return 0, err
	}
	if org == nil {
		return OutcomeIgnoredUnknownCustomer, nil
	}

	if subID != "" {
		org.StripeSubscriptionID = &subID
	}

	if eventType == EventInvoicePaid {
		org.SubscriptionStatus = models.SubscriptionActive
		org.Plan = models.PlanPro
	} else {
		// Payment failure keeps the org billed as pro for the grace period;
		// the billing gate still blocks its writes while past_due.
		org.SubscriptionStatus = models.SubscriptionPastDue
		org.Plan = models.PlanPro
	}

	if err := r.UpdateOrgBilling(ctx, org); err != nil {
		return 0, err
	}
	return OutcomeApplied, nil
}

// mapSubscriptionStatus maps raw provider status strings onto the internal
// enum. Unrecognized strings collapse to none.
func mapSubscriptionStatus(raw string) models.SubscriptionStatus {
	switch raw {
	case "active":
		return models.SubscriptionActive
	case "trialing":
		return models.SubscriptionTrialing
	case "past_due":
		return models.SubscriptionPastDue
	case "unpaid":
		return models.SubscriptionUnpaid
	case "canceled":
		return models.SubscriptionCanceled
	case "incomplete":
		return models.SubscriptionIncomplete
	}
	return models.SubscriptionNone
}

// planForStatus derives the plan from the status invariant:
// pro iff active, trialing or past_due.
func planForStatus(s models.SubscriptionStatus) models.Plan {
	switch s {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue:
		return models.PlanPro
	}
	return models.PlanFree
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, errObjectNotRecord
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errObjectNotRecord
	}
	if obj == nil {
		return nil, errObjectNotRecord
	}
	return obj, nil
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func metadataField(obj map[string]interface{}) map[string]string {
	raw, _ := obj["metadata"].(map[string]interface{})
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
