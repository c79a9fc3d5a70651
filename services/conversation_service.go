package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSelfConversation = errors.New("cannot start a conversation with yourself")

// OtherUser is the slice of the other participant's profile the
// conversation list needs.
type OtherUser struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	AvatarURL *string    `json:"avatar_url"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
}

type LastMessage struct {
	Content     *string   `json:"content"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// EnrichedConversation is a Conversation joined, at read time, with the
// other participant's profile, the newest message and the viewer's unread
// count. Derived on every fetch, never persisted.
type EnrichedConversation struct {
	models.Conversation
	OtherUser   *OtherUser   `json:"other_user,omitempty"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int64        `json:"unread_count"`
}

func conversationsKey(userID uuid.UUID) string {
	return "conversations:" + userID.String()
}

// ListConversations returns the viewer's conversations ordered by
// updated_at descending, each enriched in parallel. Served through the
// query cache; change events on conversations, messages or profiles
// invalidate the key.
func ListConversations(ctx context.Context, userID uuid.UUID) ([]EnrichedConversation, error) {
	v, err := cache.Shared.GetOrFetch(ctx, conversationsKey(userID), func(ctx context.Context) (interface{}, error) {
		return fetchConversations(userID)
	})
	if err != nil {
		if stale, ok := v.([]EnrichedConversation); ok {
			return stale, err
		}
		return nil, err
	}
	return v.([]EnrichedConversation), nil
}

func fetchConversations(userID uuid.UUID) ([]EnrichedConversation, error) {
	var convs []models.Conversation
	if err := database.DB.
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&convs).Error; err != nil {
		return nil, err
	}

	// Each row's enrichment is independent: a failed sub-fetch degrades
	// that row's optional fields, never the list.
	enriched := make([]EnrichedConversation, len(convs))
	var wg sync.WaitGroup
	for i, conv := range convs {
		wg.Add(1)
		go func(i int, conv models.Conversation) {
			defer wg.Done()
			enriched[i] = enrichConversation(conv, userID)
		}(i, conv)
	}
	wg.Wait()
	return enriched, nil
}

func enrichConversation(conv models.Conversation, viewerID uuid.UUID) EnrichedConversation {
	out := EnrichedConversation{Conversation: conv}
	otherID := OtherParticipant(conv, viewerID)

	var other models.User
	err := database.DB.
		Select("id", "username", "avatar_url", "is_online", "last_seen").
		First(&other, "id = ?", otherID).Error
	if err == nil {
		out.OtherUser = &OtherUser{
			ID:        other.ID,
			Username:  other.Username,
			AvatarURL: other.AvatarURL,
			IsOnline:  other.IsOnline,
			LastSeen:  other.LastSeen,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error fetching profile %s: %v", otherID, err)
	}

	var last models.Message
	err = database.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at desc").
		First(&last).Error
	if err == nil {
		out.LastMessage = &LastMessage{
			Content:     last.Content,
			MessageType: last.MessageType,
			CreatedAt:   last.CreatedAt,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Error fetching last message for conversation %s: %v", conv.ID, err)
	}

	var count int64
	err = database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND is_read = ? AND sender_id <> ?", conv.ID, false, viewerID).
		Count(&count).Error
	if err == nil {
		out.UnreadCount = count
	} else {
		log.Printf("Error counting unread for conversation %s: %v", conv.ID, err)
	}

	return out
}

// OtherParticipant resolves the participant that is not the viewer.
func OtherParticipant(conv models.Conversation, viewerID uuid.UUID) uuid.UUID {
	if conv.User1ID == viewerID {
		return conv.User2ID
	}
	return conv.User1ID
}

// NormalizePair orders two participant ids so the lower uuid always lands
// in user1_id. Together with the composite unique index this makes racing
// creations of the same pair converge on one row.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// CreateOrGetConversation returns the existing conversation for the pair or
// creates it. Idempotent from either direction; a lost insert race falls
// back to fetching the winner's row.
func CreateOrGetConversation(ctx context.Context, userID, otherUserID uuid.UUID) (*models.Conversation, bool, error) {
	if userID == otherUserID {
		return nil, false, ErrSelfConversation
	}
	u1, u2 := NormalizePair(userID, otherUserID)

	var conv models.Conversation
	err := database.DB.
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", u1, u2, u2, u1).
		First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{User1ID: u1, User2ID: u2}
	result := database.DB.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&conv)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		// the other participant's request won the race
		if err := database.DB.
			Where("user1_id = ? AND user2_id = ?", u1, u2).
			First(&conv).Error; err != nil {
			return nil, false, err
		}
		return &conv, false, nil
	}

	realtime.Publish(ctx, realtime.TableConversations)
	return &conv, true, nil
}

// IsParticipant reports whether userID is one of the conversation's two
// participants.
func IsParticipant(conv models.Conversation, userID uuid.UUID) bool {
	return conv.User1ID == userID || conv.User2ID == userID
}
