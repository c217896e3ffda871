package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one immutable entry of a complaint's conversation thread.
type Message struct {
	ID string `gorm:"primaryKey;type:text" json:"id"`
	// ComplaintID is the owning complaint.
	ComplaintID string `gorm:"type:text;not null;uniqueIndex:idx_thread_seq,priority:1" json:"complaint_id"`
	// UserID is the author.
	UserID  string `gorm:"type:text;not null" json:"user_id"`
	Message string `gorm:"type:text;not null" json:"message"`
	// IsStaffResponse is derived from the author's role at write time.
	IsStaffResponse bool      `gorm:"not null;default:false" json:"is_staff_response"`
	CreatedAt       time.Time `json:"created_at"`
	// Seq is the 1-based position in the thread; it breaks created_at ties.
	Seq int64 `gorm:"not null;uniqueIndex:idx_thread_seq,priority:2" json:"seq"`
}

func (Message) TableName() string { return "complaint_messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
