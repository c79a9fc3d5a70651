package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
)

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	About     *string `json:"about"`
	AvatarURL *string `json:"avatar_url"`
}

func GetProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(user)
}

// ListProfiles feeds the new-conversation picker: everyone except the
// requester.
func ListProfiles(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var users []models.User
	if err := database.DB.
		Where("id <> ?", userID).
		Order("username asc").
		Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profiles"})
	}
	return c.JSON(users)
}

func UpdateProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.About != nil {
		user.About = req.About
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}

	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	// conversation lists embed this profile, let them refresh
	realtime.Publish(c.UserContext(), realtime.TableProfiles)

	return c.JSON(user)
}

// Heartbeat keeps last_seen current for clients that poll instead of
// holding a socket open.
func Heartbeat(c *fiber.Ctx) error {
	userID := currentUserID(c)

	now := time.Now()
	err := database.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_online": true, "last_seen": now}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update presence"})
	}
	realtime.Publish(c.UserContext(), realtime.TableProfiles)

	return c.JSON(fiber.Map{"last_seen": now})
}
