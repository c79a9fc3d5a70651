package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/notifications"
	"github.com/mwenda27/chat_link/services"
)

func GetDashboardStats(c *fiber.Ctx) error {
	stats, err := services.GetStats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stats"})
	}
	return c.JSON(stats)
}

func GetAllUsers(c *fiber.Ctx) error {
	users, err := services.ListUsers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(users)
}

// ExportUsersCSV streams the user list for offline review.
func ExportUsersCSV(c *fiber.Ctx) error {
	users, err := services.ListUsers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write([]string{"ID", "Username", "Email", "Online", "Last Seen", "Joined"})
	for _, user := range users {
		lastSeen := ""
		if user.LastSeen != nil {
			lastSeen = user.LastSeen.Format(time.RFC3339)
		}
		writer.Write([]string{
			user.ID.String(),
			user.Username,
			user.Email,
			fmt.Sprintf("%t", user.IsOnline),
			lastSeen,
			user.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build CSV"})
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="chat_link_users.csv"`)
	return c.Send(buf.Bytes())
}

func ListReports(c *fiber.Ctx) error {
	reports, err := services.ListReports()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(reports)
}

func ResolveReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("reportId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid report ID"})
	}

	report, err := services.ResolveReport(c.UserContext(), reportID)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Report not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve report"})
	}

	go notifyReporter(report)

	return c.JSON(report)
}

func notifyReporter(report *models.ChatReport) {
	if report.ReporterID == nil {
		return
	}
	var reporter models.User
	if err := database.DB.First(&reporter, "id = ?", *report.ReporterID).Error; err != nil {
		log.Printf("Cannot notify reporter %s: %v", *report.ReporterID, err)
		return
	}
	notifications.SendEmail(reporter.Username, reporter.Email, "Your report has been handled",
		"<p>Thanks for flagging this. A moderator reviewed your report and it is now resolved.</p>")
}

// ExportTranscript renders the reported conversation to PDF for the case
// file and returns its URL.
func ExportTranscript(c *fiber.Ctx) error {
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	url, err := services.ExportTranscript(c.UserContext(), conversationID)
	if err != nil {
		log.Printf("Transcript export failed for conversation %s: %v", conversationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export transcript"})
	}
	return c.JSON(fiber.Map{"url": url})
}
