package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message is immutable after creation except IsRead, which only ever
// transitions false -> true when the recipient opens the conversation.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`

	Content     *string `gorm:"type:text" json:"content"`
	MessageType string  `gorm:"size:10;not null;default:'text'" json:"message_type"`
	FileURL     *string `gorm:"size:512" json:"file_url"`
	FileName    *string `gorm:"size:255" json:"file_name"`
	IsRead      bool    `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
