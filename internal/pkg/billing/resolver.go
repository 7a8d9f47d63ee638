package billing

import (
	"context"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/google/uuid"
)

// resolveOrg maps provider-side references to a tenant. Fixed priority, first
// match wins:
//
//  1. stored customer reference
//  2. stored subscription reference
//  3. metadata["org_id"] as a direct id lookup (one-time bootstrap path for
//     the very first event on a brand-new customer)
//
// A malformed metadata org_id is no match, not an error.
func resolveOrg(ctx context.Context, r Repository, customerRef, subscriptionRef string, metadata map[string]string) (*models.Org, error) {
	if customerRef != "" {
		org, err := r.FindOrgByCustomerRef(ctx, customerRef)
		if err != nil {
			return nil, err
		}
		if org != nil {
			return org, nil
		}
	}

	if subscriptionRef != "" {
		org, err := r.FindOrgBySubscriptionRef(ctx, subscriptionRef)
		if err != nil {
			return nil, err
		}
		if org != nil {
			return org, nil
		}
	}

	if raw, ok := metadata["org_id"]; ok && raw != "" {
		orgID, err := uuid.Parse(raw)
		if err != nil {
			return nil, nil
		}
		return r.FindOrgByID(ctx, orgID)
	}

	return nil, nil
}
