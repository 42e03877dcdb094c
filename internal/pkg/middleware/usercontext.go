package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/badmintontv/badmintontv/app/controllers"
	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/session"
	"github.com/badmintontv/badmintontv/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// On error: set as anonymous user
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		// Set legacy compatibility locals
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// Get user ID from session
	userID := sess.Get(controllers.USER_ID)
	if userID == nil {
		// Anonymous user - no session data
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		// Set legacy compatibility locals
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// User is logged in - get additional data
	username := session.GetSessionValue(c, controllers.USER_NAME)
	isAdmin := sess.Get(controllers.USER_IS_ADMIN)

	// Determine subscription state with session-first strategy. The billing
	// controllers clear the session key whenever the subscription changes.
	hasSubscription := false
	switch session.GetSessionValue(c, controllers.USER_HAS_SUBSCRIPTION) {
	case "true":
		hasSubscription = true
	case "false":
		hasSubscription = false
	default:
		if has, err := repository.GetGlobalRepositories().User.HasSubscription(userID.(uint)); err == nil {
			hasSubscription = has
		}
		// cache in session for subsequent requests
		value := "false"
		if hasSubscription {
			value = "true"
		}
		_ = session.SetSessionValue(c, controllers.USER_HAS_SUBSCRIPTION, value)
	}

	// Set complete user context
	userCtx := usercontext.UserContext{
		UserID:          userID.(uint),
		Username:        username,
		IsLoggedIn:      true,
		IsAdmin:         isAdmin != nil && isAdmin.(bool),
		HasSubscription: hasSubscription,
	}
	c.Locals("USER_CONTEXT", userCtx)

	// Legacy compatibility - keep existing Locals for backward compatibility
	c.Locals(controllers.FROM_PROTECTED, true)
	c.Locals(controllers.USER_NAME, username)
	c.Locals(controllers.USER_ID, userID.(uint))
	c.Locals(controllers.USER_IS_ADMIN, userCtx.IsAdmin)

	return c.Next()
}
