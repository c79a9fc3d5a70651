package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation holds an unordered participant pair. The pair is stored
// normalized (lower uuid in User1ID) so the composite unique index can
// guarantee at most one row per pair.
type Conversation struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	User1ID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair" json:"user1_id"`
	User2ID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair" json:"user2_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (cv *Conversation) BeforeCreate(tx *gorm.DB) error {
	if cv.ID == uuid.Nil {
		cv.ID = uuid.New()
	}
	return nil
}
