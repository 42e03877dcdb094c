package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/badmintontv/badmintontv/app/controllers"
	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/stripe_webhook/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)

	// Auth
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get("/settings", middleware.RequireAuth, controllers.HandleSettings)
	group.Get("/account/begin_password_reset", loggedInMiddleware, controllers.HandlePasswordResetBegin)
	group.Post("/account/begin_password_reset", loggedInMiddleware, controllers.HandlePasswordResetBegin)
	group.Get("/account/password_reset", loggedInMiddleware, controllers.HandlePasswordReset)
	group.Post("/account/password_reset", loggedInMiddleware, controllers.HandlePasswordReset)

	// Billing
	group.Get("/pricing", loggedInMiddleware, controllers.HandlePricing)
	group.Get("/subscription/create", middleware.RequireAuth, controllers.HandleSubscriptionCreate)
	group.Post("/subscription/create", middleware.RequireAuth, controllers.HandleSubscriptionCreate)
	group.Get("/subscription/update", middleware.RequireAuth, controllers.HandleSubscriptionUpdate)
	group.Post("/subscription/update", middleware.RequireAuth, controllers.HandleSubscriptionUpdate)
	group.Get("/subscription/cancel", middleware.RequireAuth, controllers.HandleSubscriptionCancel)
	group.Post("/subscription/cancel", middleware.RequireAuth, controllers.HandleSubscriptionCancel)
	group.Get("/subscription/update_payment_method", middleware.RequireAuth, controllers.HandlePaymentMethodUpdate)
	group.Post("/subscription/update_payment_method", middleware.RequireAuth, controllers.HandlePaymentMethodUpdate)
	group.Get("/subscription/billing_details", middleware.RequireAuth, controllers.HandleBillingDetails)

	// Video catalog, members only
	group.Get("/videos", middleware.RequireSubscription, controllers.HandleVideoIndex)
	group.Get("/videos/:id", middleware.RequireSubscription, controllers.HandleVideoShow)
	group.Get("/tournaments", middleware.RequireSubscription, controllers.HandleTournamentIndex)
	group.Get("/tournaments/:id", middleware.RequireSubscription, controllers.HandleTournamentShow)
}
