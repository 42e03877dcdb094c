package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/badmintontv/badmintontv/app/controllers"
	"github.com/badmintontv/badmintontv/internal/pkg/billing"
	"github.com/badmintontv/badmintontv/internal/pkg/database"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
	"github.com/badmintontv/badmintontv/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Account confirmation (link from the signup mail, no CSRF token)
	app.Get("/confirm/:token", loggedInMiddleware, controllers.HandleAuthConfirm)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Billing provider webhooks (no CSRF, events are verified against the
	// provider before they are applied)
	reconciler := billing.NewReconciler(
		billing.NewServiceFromDB(database.GetDB(), gateway.NewStripeGatewayFromEnv()),
	)
	controllers.NewWebhookController(reconciler).RegisterRoutes(app)
}
