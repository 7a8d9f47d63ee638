package controllers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/entitlements"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/rbac"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/usercontext"
)

var validate = validator.New()

// OrgContext is the resolved org + membership of the requesting user.
type OrgContext struct {
	Org        *models.Org
	Membership *models.Membership
}

// requireOrgPerm resolves the org_id route param, checks membership and the
// permission table. On failure the response is already written and the first
// return value is nil.
func requireOrgPerm(c *fiber.Ctx, action rbac.Action) (*OrgContext, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	orgID, err := uuid.Parse(c.Params("org_id"))
	if err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "org_not_found"})
	}

	db := database.GetDB()

	var org models.Org
	if err := db.Where("id = ?", orgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "org_not_found"})
		}
		log.Printf("org lookup failed: %v", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	var membership models.Membership
	if err := db.Where("user_id = ? AND org_id = ?", userCtx.UserID, orgID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not_a_member"})
		}
		log.Printf("membership lookup failed: %v", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if !rbac.Allowed(action, membership.Role) {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	return &OrgContext{Org: &org, Membership: &membership}, nil
}

// guardOrgWrite applies the billing gate and, on the free plan, the quota for
// the given resource. Returns (true, response) when the request was rejected.
func guardOrgWrite(c *fiber.Ctx, org *models.Org, resource entitlements.Resource) (bool, error) {
	if err := entitlements.EnforceBillingWritable(org); err != nil {
		return true, c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "billing_required"})
	}

	if org.Plan == models.PlanFree {
		if err := entitlements.EnforceFreeLimit(database.GetDB(), org.ID, resource); err != nil {
			var qe *entitlements.QuotaError
			if errors.As(err, &qe) {
				return true, c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": qe.Error()})
			}
			log.Printf("quota check failed: %v", err)
			return true, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
	}

	return false, nil
}

// parseBody decodes and validates a JSON request body. Returns (true, response)
// when the request was rejected.
func parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validate.Struct(out); err != nil {
		return true, c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	return false, nil
}
