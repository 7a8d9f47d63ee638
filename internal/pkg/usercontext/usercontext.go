package usercontext

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// KeyUserContext is the fiber locals key holding the UserContext.
	KeyUserContext = "USER_CONTEXT"
)

// UserContext carries the authenticated identity through a request.
type UserContext struct {
	UserID     uuid.UUID
	Email      string
	IsLoggedIn bool
}

// GetUserContext returns the context stored by the auth middleware, or a
// zero value for anonymous requests.
func GetUserContext(c *fiber.Ctx) UserContext {
	if v, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return v
	}
	return UserContext{}
}

// SetUserContext stores the context for downstream handlers.
func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
}
