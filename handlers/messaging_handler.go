package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/services"
	"github.com/mwenda27/chat_link/websocket"
	"gorm.io/gorm"
)

func GetUserConversations(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}

	conversations, err := services.ListConversations(c.UserContext(), userID)
	if err != nil {
		if conversations != nil {
			// stale-while-error: serve the last good list
			log.Printf("Serving stale conversation list for %s: %v", userID, err)
			return c.JSON(conversations)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversations"})
	}
	return c.JSON(conversations)
}

func CreateOrGetConversation(c *fiber.Ctx) error {
	userID := currentUserID(c)

	type Request struct {
		RecipientID string `json:"recipient_id" validate:"required,uuid"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	recipientID, _ := uuid.Parse(req.RecipientID)

	var recipient models.User
	if err := database.DB.First(&recipient, "id = ?", recipientID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Recipient not found"})
	}

	conversation, created, err := services.CreateOrGetConversation(c.UserContext(), userID, recipientID)
	if err != nil {
		if errors.Is(err, services.ErrSelfConversation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot message yourself"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create conversation"})
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(conversation)
	}
	return c.JSON(conversation)
}

// GetConversationMessages returns the full history in display order.
// Opening the feed marks everything the viewer received as read.
func GetConversationMessages(c *fiber.Ctx) error {
	userID := currentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	conv, err := requireParticipant(conversationID, userID)
	if err != nil {
		return conversationAccessError(c, err)
	}

	if _, err := services.MarkConversationRead(c.UserContext(), conv.ID, userID); err != nil {
		log.Printf("Failed to mark conversation %s read for %s: %v", conv.ID, userID, err)
	}

	messages, err := services.ListMessages(c.UserContext(), conv.ID)
	if err != nil {
		if messages != nil {
			log.Printf("Serving stale feed for conversation %s: %v", conv.ID, err)
			return c.JSON(messages)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}
	return c.JSON(messages)
}

type SendMessageRequest struct {
	Content     *string `json:"content"`
	MessageType string  `json:"message_type" validate:"omitempty,oneof=text image file"`
	FileURL     *string `json:"file_url" validate:"omitempty,url"`
	FileName    *string `json:"file_name"`
}

func SendMessage(c *fiber.Ctx) error {
	userID := currentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	message, err := services.SendMessage(c.UserContext(), services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		MessageType:    req.MessageType,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message needs text or an attachment"})
		case errors.Is(err, services.ErrNotParticipant):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(message)
}

// MarkConversationRead lets clients that keep the socket open flag messages
// read without refetching the feed.
func MarkConversationRead(c *fiber.Ctx) error {
	userID := currentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	if _, err := requireParticipant(conversationID, userID); err != nil {
		return conversationAccessError(c, err)
	}

	marked, err := services.MarkConversationRead(c.UserContext(), conversationID, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark read"})
	}
	return c.JSON(fiber.Map{"marked": marked})
}

type ReportRequest struct {
	ReportedUserID *string `json:"reported_user_id" validate:"omitempty,uuid"`
	ConversationID *string `json:"conversation_id" validate:"omitempty,uuid"`
	Reason         string  `json:"reason" validate:"required,min=3"`
}

func ReportChat(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report := models.ChatReport{
		ReporterID: &userID,
		Reason:     req.Reason,
	}
	if req.ReportedUserID != nil {
		id, _ := uuid.Parse(*req.ReportedUserID)
		report.ReportedUserID = &id
	}
	if req.ConversationID != nil {
		id, _ := uuid.Parse(*req.ConversationID)
		report.ConversationID = &id
	}

	if err := services.CreateReport(c.UserContext(), &report); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to file report"})
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

var errNotParticipant = errors.New("not a participant")

func requireParticipant(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, err
	}
	if !services.IsParticipant(conv, userID) {
		return nil, errNotParticipant
	}
	return &conv, nil
}

func conversationAccessError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	if errors.Is(err, errNotParticipant) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a participant"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load conversation"})
}

// ServeWs authenticates the socket with a first auth frame, registers the
// client with the hub, then treats every further frame as a send.
func ServeWs(c *websocketcontrib.Conn) {
	type AuthMessage struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	var authMsg AuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	claims, err := parseToken(authMsg.Token)
	if err != nil {
		log.Printf("WebSocket auth failed: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	raw, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		log.Printf("WebSocket auth failed: bad user_id %q: %v", raw, err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
		c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	websocket.Register <- client
	defer func() {
		websocket.Unregister <- client
		c.Close()
	}()

	for {
		var payload websocket.SendPayload
		if err := c.ReadJSON(&payload); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
				log.Printf("WebSocket closed for client %s: %v", userID, err)
			} else {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			break
		}

		convID, err := uuid.Parse(payload.ConversationID)
		if err != nil {
			_ = client.WriteJSON(fiber.Map{"error": "Invalid conversation ID"})
			continue
		}
		if _, err := services.SendMessage(context.Background(), services.SendMessageInput{
			ConversationID: convID,
			SenderID:       userID,
			Content:        payload.Content,
			MessageType:    payload.MessageType,
			FileURL:        payload.FileURL,
			FileName:       payload.FileName,
		}); err != nil {
			log.Printf("Failed to send message for client %s: %v", userID, err)
			_ = client.WriteJSON(fiber.Map{"error": "Failed to send message"})
			continue
		}
	}
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.Config("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
