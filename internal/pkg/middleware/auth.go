package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	icuser "github.com/badmintontv/badmintontv/internal/pkg/usercontext"
)

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	v := c.Locals(icuser.KeyFromProtected)
	loggedIn := false
	if b, ok := v.(bool); ok {
		loggedIn = b
	}
	if !loggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	v := c.Locals(icuser.KeyFromProtected)
	loggedIn := false
	if b, ok := v.(bool); ok {
		loggedIn = b
	}
	if !loggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if isAdmin, ok := c.Locals(icuser.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireSubscription gates the video catalog: members need a subscription,
// admins always pass. Everyone else lands on the pricing page.
func RequireSubscription(c *fiber.Ctx) error {
	ctx := icuser.GetUserContext(c)
	if !ctx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if ctx.IsAdmin || ctx.HasSubscription {
		return c.Next()
	}
	fm := fiber.Map{
		"type":    "error",
		"message": "You need an active subscription to watch videos",
	}
	return flash.WithError(c, fm).Redirect("/pricing", fiber.StatusSeeOther)
}
