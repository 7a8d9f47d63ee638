package controllers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/entitlements"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/rbac"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/usercontext"
)

type taskCreateIn struct {
	Title      string     `json:"title" validate:"required,min=1,max=300"`
	AssignedTo *uuid.UUID `json:"assigned_to"`
}

// taskUpdateIn distinguishes absent fields from explicit nulls so that
// sending {"assigned_to": null} unassigns.
type taskUpdateIn struct {
	Title      *string            `json:"title" validate:"omitempty,min=1,max=300"`
	Status     *models.TaskStatus `json:"status"`
	AssignedTo *uuid.UUID         `json:"assigned_to"`

	assignedToSet bool
}

func (in *taskUpdateIn) UnmarshalJSON(data []byte) error {
	type alias taskUpdateIn
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*in = taskUpdateIn(a)
	_, in.assignedToSet = keys["assigned_to"]
	return nil
}

func taskOut(t *models.Task) fiber.Map {
	return fiber.Map{
		"id":          t.ID,
		"org_id":      t.OrgID,
		"project_id":  t.ProjectID,
		"title":       t.Title,
		"status":      t.Status,
		"created_by":  t.CreatedBy,
		"assigned_to": t.AssignedTo,
	}
}

func HandleCreateTask(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.TasksCreate)
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

	var in taskCreateIn
	if handled, resp := parseBody(c, &in); handled {
		return resp
	}

	db := database.GetDB()
	var project models.Project
	if err := db.Where("id = ? AND org_id = ?", projectID, octx.Org.ID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
		}
		log.Printf("task create: project lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	userCtx := usercontext.GetUserContext(c)
	t := models.Task{
		OrgID:      octx.Org.ID,
		ProjectID:  projectID,
		Title:      in.Title,
		CreatedBy:  userCtx.UserID,
		AssignedTo: in.AssignedTo,
	}
	if err := db.Create(&t).Error; err != nil {
		log.Printf("task create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(taskOut(&t))
}

func HandleListTasks(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.TasksRead)
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
	var project models.Project
	if err := db.Where("id = ? AND org_id = ?", projectID, octx.Org.ID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project_not_found"})
		}
		log.Printf("task list: project lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	var tasks []models.Task
	if err := db.Where("org_id = ? AND project_id = ?", octx.Org.ID, projectID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		log.Printf("task list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	out := make([]fiber.Map, 0, len(tasks))
	for i := range tasks {
		out = append(out, taskOut(&tasks[i]))
	}
	return c.JSON(out)
}

func HandleUpdateTask(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.TasksUpdate)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceTasks); handled {
		return resp
	}

	taskID, err := uuid.Parse(c.Params("task_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task_not_found"})
	}

	var in taskUpdateIn
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validate.Struct(&in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if in.Status != nil && !models.ValidTaskStatus(*in.Status) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_status"})
	}

	db := database.GetDB()
	var t models.Task
	if err := db.Where("id = ? AND org_id = ?", taskID, octx.Org.ID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task_not_found"})
		}
		log.Printf("task lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	// Members may only edit tasks they created or are assigned to.
	userCtx := usercontext.GetUserContext(c)
	if octx.Membership.Role == models.RoleMember {
		assignedToUser := t.AssignedTo != nil && *t.AssignedTo == userCtx.UserID
		if t.CreatedBy != userCtx.UserID && !assignedToUser {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
	}

	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.assignedToSet {
		t.AssignedTo = in.AssignedTo
	}

	if err := db.Save(&t).Error; err != nil {
		log.Printf("task update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(taskOut(&t))
}

func HandleDeleteTask(c *fiber.Ctx) error {
	octx, err := requireOrgPerm(c, rbac.TasksDelete)
	if octx == nil {
		return err
	}
	if handled, resp := guardOrgWrite(c, octx.Org, entitlements.ResourceTasks); handled {
		return resp
	}

	taskID, err := uuid.Parse(c.Params("task_id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task_not_found"})
	}

	db := database.GetDB()
	var t models.Task
	if err := db.Where("id = ? AND org_id = ?", taskID, octx.Org.ID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task_not_found"})
		}
		log.Printf("task lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if err := db.Delete(&t).Error; err != nil {
		log.Printf("task delete failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"deleted": true})
}
