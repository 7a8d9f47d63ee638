package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/entitlements"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/rbac"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/usercontext"
)

type orgCreateIn struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type inviteIn struct {
	Email string      `json:"email" validate:"required,email"`
	Role  models.Role `json:"role" validate:"required"`
}

func orgOut(o *models.Org) fiber.Map {
	return fiber.Map{"id": o.ID, "name": o.Name}
}

// HandleCreateOrg creates an org with the caller as owner.
func HandleCreateOrg(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var in orgCreateIn
	if handled, err := parseBody(c, &in); handled {
		return err
	}

	db := database.GetDB()
	org := models.Org{Name: in.Name}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			UserID: userCtx.UserID,
			OrgID:  org.ID,
			Role:   models.RoleOwner,
		}).Error
	})
	if err != nil {
		log.Printf("org create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(orgOut(&org))
}

// HandleListOrgs lists the orgs the caller belongs to, newest first.
func HandleListOrgs(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var orgs []models.Org
	err := database.GetDB().
		Joins("JOIN memberships ON memberships.org_id = orgs.id").
		Where("memberships.user_id = ?", userCtx.UserID).
		Order("orgs.created_at DESC").
		Find(&orgs).Error
	if err != nil {
		log.Printf("org list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	out := make([]fiber.Map, 0, len(orgs))
	for i := range orgs {
		out = append(out, orgOut(&orgs[i]))
	}
	return c.JSON(out)
}

// HandleGetOrg returns one org the caller is a member of.
func HandleGetOrg(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.OrgView)
	if octx == nil {
		return err
	}
	return c.JSON(orgOut(octx.Org))
}

// HandleListMembers lists the org's memberships with member emails.
func HandleListMembers(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.OrgView)
	if octx == nil {
		return err
	}

	var rows []struct {
		UserID uuid.UUID   `json:"user_id"`
		Email  string      `json:"email"`
		Role   models.Role `json:"role"`
	}
	err = database.GetDB().
		Model(&models.Membership{}).
		Select("memberships.user_id, users.email, memberships.role").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.org_id = ?", octx.Org.ID).
		Order("memberships.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		log.Printf("member list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(rows)
}

// HandleInviteUser adds a user to the org, creating the account if needed.
// Owners may grant admin or member; admins only member. Re-inviting an
// existing member is idempotent.
func HandleInviteUser(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.OrgInvite)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceMembers); handled {
		return resp
	}

	var in inviteIn
	if handled, resp := parseBody(c, &in); handled {
		return resp
	}

	allowedRolesByInviter := map[models.Role][]models.Role{
		models.RoleOwner: {models.RoleAdmin, models.RoleMember},
		models.RoleAdmin: {models.RoleMember},
	}
	grantable := false
	for _, r := range allowedRolesByInviter[octx.Membership.Role] {
		if r == in.Role {
			grantable = true
			break
		}
	}
	if !grantable {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	db := database.GetDB()
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var invited models.User
	if err := db.Where("email = ?", email).First(&invited).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("invite: user lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		invited = models.User{Email: email}
		if err := db.Create(&invited).Error; err != nil {
			log.Printf("invite: user create failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
	}

	var existing models.Membership
	err = db.Where("user_id = ? AND org_id = ?", invited.ID, octx.Org.ID).First(&existing).Error
	if err == nil {
		return c.JSON(fiber.Map{"user_id": existing.UserID, "org_id": existing.OrgID, "role": existing.Role})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("invite: membership lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	membership := models.Membership{UserID: invited.ID, OrgID: octx.Org.ID, Role: in.Role}
	if err := db.Create(&membership).Error; err != nil {
		log.Printf("invite: membership create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"user_id": membership.UserID, "org_id": membership.OrgID, "role": membership.Role})
}
