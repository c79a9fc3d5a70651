package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwenda27/chat_link/handlers"
	"github.com/mwenda27/chat_link/middleware"
)

func ProfileRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	profiles := api.Group("/profiles", middleware.Protected())
	profiles.Get("/me", handlers.GetProfile)
	profiles.Put("/me", handlers.UpdateProfile)
	profiles.Post("/me/heartbeat", handlers.Heartbeat)
	profiles.Get("", handlers.ListProfiles)
}
