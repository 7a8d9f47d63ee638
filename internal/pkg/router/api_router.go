package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/TeamDesk/app/controllers"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/billing"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/cache"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/env"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/middleware"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/ratelimit"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limiter := ratelimit.New(cache.GetClient())
	limiter.Enabled = env.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"

	app.Get("/health", controllers.HandleHealth)
	app.Get("/ready", controllers.HandleReady)

	auth := app.Group("/auth")
	auth.Post("/request-link",
		middleware.RateLimit(limiter, "auth:request_link", envLimit("RATE_LIMIT_AUTH_REQUEST_LINK_PER_MIN", 20)),
		controllers.HandleRequestLink)
	auth.Post("/redeem",
		middleware.RateLimit(limiter, "auth:redeem", envLimit("RATE_LIMIT_AUTH_REDEEM_PER_MIN", 30)),
		controllers.HandleRedeem)

	webhookController := controllers.NewWebhookController(billing.NewServiceFromDB(database.GetDB()))
	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe",
		middleware.RateLimit(limiter, "webhooks:stripe", envLimit("RATE_LIMIT_WEBHOOKS_PER_MIN", 60)),
		webhookController.HandleStripeWebhook)

	orgs := app.Group("/orgs", middleware.RequireAuth())
	orgs.Post("/", controllers.HandleCreateOrg)
	orgs.Get("/", controllers.HandleListOrgs)
	orgs.Get("/:org_id", controllers.HandleGetOrg)
	orgs.Get("/:org_id/members", controllers.HandleListMembers)
	orgs.Post("/:org_id/invites", controllers.HandleInviteUser)

	projects := orgs.Group("/:org_id/projects")
	projects.Post("/", controllers.HandleCreateProject)
	projects.Get("/", controllers.HandleListProjects)
	projects.Patch("/:project_id", controllers.HandleUpdateProject)
	projects.Delete("/:project_id", controllers.HandleDeleteProject)

	tasks := orgs.Group("/:org_id")
	tasks.Post("/projects/:project_id/tasks", controllers.HandleCreateTask)
	tasks.Get("/projects/:project_id/tasks", controllers.HandleListTasks)
	tasks.Patch("/tasks/:task_id", controllers.HandleUpdateTask)
	tasks.Delete("/tasks/:task_id", controllers.HandleDeleteTask)
}

func envLimit(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}
