package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwenda27/chat_link/handlers"
	"github.com/mwenda27/chat_link/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/stats", handlers.GetDashboardStats)

	users := admin.Group("/users")
	users.Get("", handlers.GetAllUsers)
	users.Get("/export", handlers.ExportUsersCSV)

	reports := admin.Group("/reports")
	reports.Get("", handlers.ListReports)
	reports.Post("/:reportId/resolve", handlers.ResolveReport)

	admin.Post("/conversations/:conversationId/transcript", handlers.ExportTranscript)
}
