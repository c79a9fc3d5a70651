package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportStatusPending  = "pending"
	ReportStatusResolved = "resolved"
)

type ChatReport struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ReporterID     *uuid.UUID `gorm:"type:uuid" json:"reporter_id"`
	ReportedUserID *uuid.UUID `gorm:"type:uuid" json:"reported_user_id"`
	ConversationID *uuid.UUID `gorm:"type:uuid" json:"conversation_id"`

	Reason string `gorm:"type:text;not null" json:"reason"`
	Status string `gorm:"size:20;not null;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *ChatReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
