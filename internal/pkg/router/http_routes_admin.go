package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/badmintontv/badmintontv/app/controllers"
	"github.com/badmintontv/badmintontv/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/users", controllers.HandleAdminUsers)
	adminGroup.Post("/users/delete", controllers.HandleAdminUsersDelete)
}
