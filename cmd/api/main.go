package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mwenda27/chat_link/cache"
	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/jobs"
	"github.com/mwenda27/chat_link/notifications"
	"github.com/mwenda27/chat_link/realtime"
	"github.com/mwenda27/chat_link/routes"
	"github.com/mwenda27/chat_link/websocket"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	if err := realtime.Init(config.Config("REDIS_URL"), cache.Shared); err != nil {
		log.Fatalf("🔥 Failed to initialize change feed: %v", err)
	}
	realtime.Notify(websocket.NotifyChange)
	cache.Shared.OnInvalidate(websocket.NotifyInvalidated)
	realtime.Default.Start(context.Background())
	defer realtime.Default.Close()

	go websocket.RunHub()

	c := cron.New()
	c.AddFunc("*/5 * * * *", jobs.MarkStaleUsersOffline)
	go c.Start()
	log.Println("✅ Cron job for presence scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "ChatLink",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.PublicRoutes(app)
	routes.AuthRoutes(app)
	routes.ProfileRoutes(app)
	routes.MessagingRoutes(app)
	routes.UploadRoutes(app)
	routes.AdminRoutes(app)

	port := config.ConfigOr("PORT", "8080")
	log.Println("✅ Server is running on port " + port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
