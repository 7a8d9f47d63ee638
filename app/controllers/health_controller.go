package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/TeamDesk/internal/pkg/cache"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
)

// HandleHealth is the liveness probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReady is the readiness probe: 200 only when DB and Redis are reachable.
func HandleReady(c *fiber.Ctx) error {
	checks := fiber.Map{}
	errs := fiber.Map{}
	ok := true

	if err := database.Ping(); err != nil {
		checks["db"] = false
		errs["db"] = err.Error()
		ok = false
	} else {
		checks["db"] = true
	}

	if err := cache.Ping(); err != nil {
		checks["redis"] = false
		errs["redis"] = err.Error()
		ok = false
	} else {
		checks["redis"] = true
	}

	body := fiber.Map{"status": "ok", "checks": checks}
	if !ok {
		body["status"] = "unready"
		body["errors"] = errs
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}
