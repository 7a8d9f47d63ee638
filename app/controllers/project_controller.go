package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/entitlements"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/rbac"
)

type projectCreateIn struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type projectUpdateIn struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

func projectOut(p *models.Project) fiber.Map {
	return fiber.Map{"id": p.ID, "org_id": p.OrgID, "name": p.Name}
}

func HandleCreateProject(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.ProjectsCreate)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceProjects); handled {
		return resp
	}

	var in projectCreateIn
	if handled, resp := parseBody(c, &in); handled {
		return resp
	}

	p := models.Project{OrgID: octx.Org.ID, Name: in.Name}
	if err := database.GetDB().Create(&p).Error; err != nil {
		log.Printf("project create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(projectOut(&p))
}

func HandleListProjects(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.ProjectsRead)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceTasks); handled {
		return resp
	}

	var projects []models.Project
	if err := database.GetDB().
		Where("org_id = ?", octx.Org.ID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		log.Printf("project list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	out := make([]fiber.Map, 0, len(projects))
	for i := range projects {
		out = append(out, projectOut(&projects[i]))
	}
	return c.JSON(out)
}

func HandleUpdateProject(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.ProjectsUpdate)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceTasks); handled {
		return resp
	}

	projectID, err := uuid.Parse(c.Params("project_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
	}

	var in projectUpdateIn
	if handled, resp := parseBody(c, &in); handled {
		return resp
	}

	db := database.GetDB()
	var p models.Project
	if err := db.Where("id = ? AND org_id = ?", projectID, octx.Org.ID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
		}
		log.Printf("project lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	p.Name = in.Name
	if err := db.Save(&p).Error; err != nil {
		log.Printf("project update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(projectOut(&p))
}

func HandleDeleteProject(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.ProjectsDelete)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceTasks); handled {
		return resp
	}

	projectID, err := uuid.Parse(c.Params("project_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
	}

	db := database.GetDB()
	var p models.Project
	if err := db.Where("id = ? AND org_id = ?", projectID, octx.Org.ID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
		}
		log.Printf("project lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if err := db.Delete(&p).Error; err != nil {
		log.Printf("project delete failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"deleted": true})
}
