package rbac

import "github.com/JonasWeigert/TeamDesk/app/models"

// Action names an operation gated by the permission table.
type Action string

const (
	OrgInvite Action = "org:invite"
	OrgView   Action = "org:view"

	ProjectsCreate Action = "projects:create"
	ProjectsRead   Action = "projects:read"
	ProjectsUpdate Action = "projects:update"
	ProjectsDelete Action = "projects:delete"

	TasksCreate Action = "tasks:create"
	TasksRead   Action = "tasks:read"
	TasksUpdate Action = "tasks:update"
	TasksDelete Action = "tasks:delete"
)

var perms = map[Action]map[models.Role]bool{
	OrgInvite: {models.RoleOwner: true, models.RoleAdmin: true},
	OrgView:   {models.RoleOwner: true, models.RoleAdmin: true, models.RoleMember: true},

	ProjectsCreate: {models.RoleOwner: true, models.RoleAdmin: true},
	ProjectsRead:   {models.RoleOwner: true, models.RoleAdmin: true, models.RoleMember: true},
	ProjectsUpdate: {models.RoleOwner: true, models.RoleAdmin: true},
	ProjectsDelete: {models.RoleOwner: true, models.RoleAdmin: true},

	TasksCreate: {models.RoleOwner: true, models.RoleAdmin: true, models.RoleMember: true},
	TasksRead:   {models.RoleOwner: true, models.RoleAdmin: true, models.RoleMember: true},
	TasksUpdate: {models.RoleOwner: true, models.RoleAdmin: true, models.RoleMember: true},
	TasksDelete: {models.RoleOwner: true, models.RoleAdmin: true},
}

// Known reports whether the action exists in the permission table.
func Known(action Action) bool {
	_, ok := perms[action]
	return ok
}

// Allowed reports whether the role may perform the action.
func Allowed(action Action, role models.Role) bool {
	return perms[action][role]
}
