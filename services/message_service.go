package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
	"github.com/mwenda27/chat_link/websocket"
)

var (
	ErrEmptyMessage   = errors.New("message needs text content or an attachment")
	ErrNotParticipant = errors.New("sender is not a participant of this conversation")
)

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        *string
	MessageType    string
	FileURL        *string
	FileName       *string
}

func messagesKey(convID uuid.UUID) string {
	return "messages:" + convID.String()
}

// ListMessages returns the conversation's history in chronological order,
// served through the query cache.
func ListMessages(ctx context.Context, convID uuid.UUID) ([]models.Message, error) {
	v, err := cache.Shared.GetOrFetch(ctx, messagesKey(convID), func(ctx context.Context) (interface{}, error) {
		var messages []models.Message
		if err := database.DB.
			Where("conversation_id = ?", convID).
			Order("created_at asc").
			Find(&messages).Error; err != nil {
			return nil, err
		}
		return messages, nil
	})
	if err != nil {
		if stale, ok := v.([]models.Message); ok {
			return stale, err
		}
		return nil, err
	}
	return v.([]models.Message), nil
}

// SendMessage validates and persists a message, advances the conversation's
// updated_at, publishes the change event and optimistically appends the row
// to the cached feed. The append de-duplicates by message id, so the
// change-feed echo for the same row never shows it twice.
func SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	content := in.Content
	if content != nil {
		trimmed := strings.TrimSpace(*content)
		if trimmed == "" {
			content = nil
		} else {
			content = &trimmed
		}
	}
	// rejected before any round-trip
	if content == nil && in.FileURL == nil {
		return nil, ErrEmptyMessage
	}

	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", in.ConversationID).Error; err != nil {
		return nil, err
	}
	if !IsParticipant(conv, in.SenderID) {
		return nil, ErrNotParticipant
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
		if in.FileURL != nil {
			msgType = models.MessageTypeFile
		}
	}

	message := models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        content,
		MessageType:    msgType,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
	}
	if err := database.DB.Create(&message).Error; err != nil {
		return nil, err
	}

	// list ordering keys off updated_at; advancing it is owned here, not
	// left to a trigger
	if err := database.DB.Model(&models.Conversation{}).
		Where("id = ?", in.ConversationID).
		UpdateColumn("updated_at", time.Now()).Error; err != nil {
		return nil, err
	}

	realtime.Publish(ctx, realtime.TableMessages)
	appendCachedMessage(in.ConversationID, message)
	websocket.PushMessage(&message)

	return &message, nil
}

// appendCachedMessage re-seeds a warm feed entry with the new row instead of
// forcing a full refetch. No-op when the feed is not cached; skips rows
// already present so echoes cannot double-insert.
func appendCachedMessage(convID uuid.UUID, message models.Message) {
	cache.Shared.Update(messagesKey(convID), func(old interface{}) interface{} {
		messages, ok := old.([]models.Message)
		if !ok {
			return old
		}
		for _, m := range messages {
			if m.ID == message.ID {
				return messages
			}
		}
		return append(messages, message)
	})
}

// MarkConversationRead flips is_read on every unread message the viewer has
// received in the conversation. Opening a conversation counts as reading
// all of it: the feed endpoint returns the full history.
func MarkConversationRead(ctx context.Context, convID, viewerID uuid.UUID) (int64, error) {
	result := database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, viewerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		cache.Shared.Invalidate(messagesKey(convID))
		realtime.Publish(ctx, realtime.TableMessages)
	}
	return result.RowsAffected, nil
}
