package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile holds the display and contact details of a user.
// The ID is the user id issued by the identity provider.
type Profile struct {
	ID       string `gorm:"primaryKey;type:text" json:"id"`
	FullName string `gorm:"type:text;not null" json:"full_name"`
	// Email is the contact address used for assignment notifications.
	Email string `gorm:"type:text" json:"email,omitempty"`
	// TelegramChatID is an optional chat for Telegram notifications.
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// UserRole maps a user to their single active role.
type UserRole struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex" json:"user_id"`
	Role      Role      `gorm:"type:text;not null;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) TableName() string { return "user_roles" }

// BeforeCreate generates a new UUID for the role row if none is set.
func (r *UserRole) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
