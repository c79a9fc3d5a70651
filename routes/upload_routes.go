package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwenda27/chat_link/handlers"
	"github.com/mwenda27/chat_link/middleware"
)

func UploadRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	uploads := api.Group("/uploads", middleware.Protected())
	uploads.Post("", handlers.UploadAttachment)
	uploads.Get("/signature", handlers.GenerateUploadSignature)
}
